package boundary

import (
	"image"
	"math"
	"testing"

	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/preprocess"
	"github.com/MeKo-Tech/mathfind/internal/region"
)

func maskFrom(rows ...string) *preprocess.BinaryMask {
	h := len(rows)
	w := len(rows[0])
	m := &preprocess.BinaryMask{Width: w, Height: h, Pix: make([]byte, w*h), Scale: 1.0}
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				m.Pix[y*w+x] = 1
			}
		}
	}
	return m
}

func regionAt(rect image.Rectangle, m *preprocess.BinaryMask) *region.Region {
	r := &region.Region{Rect: rect, Mask: make([]byte, rect.Dx()*rect.Dy())}
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			if m.At(rect.Min.X+x, rect.Min.Y+y) {
				r.Mask[y*rect.Dx()+x] = 1
				r.PixelCount++
			}
		}
	}
	return r
}

func TestRefineStaysWithinPage(t *testing.T) {
	m := maskFrom(
		"####................",
		"####................",
		"####................",
	)
	r := regionAt(image.Rect(0, 0, 4, 3), m)
	got, err := NewRefiner(DefaultConfig()).Refine(r, m, feature.MathFeatures{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rect.Min.X < 0 || got.Rect.Min.Y < 0 ||
		got.Rect.Max.X > m.Width || got.Rect.Max.Y > m.Height {
		t.Fatalf("refined boundary %v exceeds page %dx%d", got.Rect, m.Width, m.Height)
	}
	if got.Rect.Dx() <= 0 || got.Rect.Dy() <= 0 {
		t.Fatal("refined boundary must have positive extent")
	}
}

func TestRefineUnionsFractionParts(t *testing.T) {
	// Numerator and denominator sit outside the bar's component extent.
	m := maskFrom(
		"....##....",
		"..........",
		".########.",
		"..........",
		"....##....",
	)
	// Seed with just the bar and a rect covering the whole stack; LabelWithin
	// must pick up all three parts.
	r := regionAt(image.Rect(0, 0, 10, 5), m)
	got, err := NewRefiner(DefaultConfig()).Refine(r, m, feature.MathFeatures{HasFractionLine: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rect.Min.Y > 0 || got.Rect.Max.Y < 5 {
		t.Fatalf("refined boundary %v does not span numerator and denominator", got.Rect)
	}
}

func TestRefineTightnessBounds(t *testing.T) {
	m := maskFrom(
		"..........",
		".########.",
		".########.",
		".########.",
		"..........",
	)
	r := regionAt(image.Rect(1, 1, 9, 4), m)
	got, err := NewRefiner(DefaultConfig()).Refine(r, m, feature.MathFeatures{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tightness < 0 || got.Tightness > 1 || math.IsNaN(got.Tightness) {
		t.Fatalf("tightness out of range: %f", got.Tightness)
	}
	if len(got.Contour) == 0 {
		t.Fatal("contour must not be empty for solid content")
	}
}

func TestRefineScriptExtension(t *testing.T) {
	// Main content with a superscript two rows above; script extension must
	// pull the boundary upward through the occupied rows.
	m := maskFrom(
		"..##......",
		"..##......",
		"####......",
		"####......",
		"####......",
		"####......",
	)
	r := regionAt(image.Rect(0, 2, 4, 6), m)
	got, err := NewRefiner(DefaultConfig()).Refine(r, m, feature.MathFeatures{HasSuperscript: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rect.Min.Y != 0 {
		t.Fatalf("expected boundary to reach the top, got %v", got.Rect)
	}
}

func TestRefineNilInputs(t *testing.T) {
	if _, err := NewRefiner(DefaultConfig()).Refine(nil, nil, feature.MathFeatures{}); err == nil {
		t.Fatal("expected error for nil inputs")
	}
}

func TestTraceContourMarksEdgesOnly(t *testing.T) {
	m := maskFrom(
		"#####",
		"#####",
		"#####",
		"#####",
		"#####",
	)
	pts := traceContour(m, image.Rect(0, 0, 5, 5))
	// 5x5 solid block: the 3x3 interior has four dark neighbors everywhere,
	// leaving the 16 border pixels as contour.
	if len(pts) != 16 {
		t.Fatalf("expected 16 contour pixels, got %d", len(pts))
	}
}
