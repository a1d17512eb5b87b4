package region

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/mathfind/internal/preprocess"
)

// maskFrom builds a BinaryMask from string rows where '#' marks foreground.
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

func TestFindSeparateComponents(t *testing.T) {
	// A full blank column keeps the blocks apart under 8-connectivity.
	m := maskFrom(
		"######....",
		"######....",
		".......###",
		".......###",
	)
	regions := NewFinder(Config{MinPixels: 4}).Find(m, nil)
	if len(regions) != 2 {
		t.Fatalf("expected 2 components, got %d", len(regions))
	}
	if regions[0].Rect != image.Rect(0, 0, 6, 2) {
		t.Fatalf("unexpected first component rect %v", regions[0].Rect)
	}
	if regions[0].PixelCount != 12 {
		t.Fatalf("unexpected first component pixel count %d", regions[0].PixelCount)
	}
}

func TestFindDiagonalIs8Connected(t *testing.T) {
	m := maskFrom(
		"##....",
		"##....",
		"..##..",
		"..##..",
	)
	regions := NewFinder(Config{MinPixels: 1}).Find(m, nil)
	if len(regions) != 1 {
		t.Fatalf("diagonal touch must join into one 8-connected component, got %d", len(regions))
	}
	if regions[0].PixelCount != 8 {
		t.Fatalf("unexpected pixel count %d", regions[0].PixelCount)
	}
}

func TestFindDropsNoiseComponents(t *testing.T) {
	m := maskFrom(
		"#.........",
		"..........",
		"....######",
		"....######",
	)
	regions := NewFinder(Config{MinPixels: 5}).Find(m, nil)
	if len(regions) != 1 {
		t.Fatalf("expected single surviving component, got %d", len(regions))
	}
	if regions[0].Rect.Min.X != 4 {
		t.Fatalf("wrong survivor: %v", regions[0].Rect)
	}
}

func TestFindEmptyMask(t *testing.T) {
	m := maskFrom("....", "....")
	if regions := NewFinder(DefaultConfig()).Find(m, nil); len(regions) != 0 {
		t.Fatalf("expected no components on empty mask, got %d", len(regions))
	}
}

func TestFindCopiesLuminance(t *testing.T) {
	m := maskFrom(
		"###",
		"###",
	)
	lum := []byte{10, 20, 30, 40, 50, 60}
	regions := NewFinder(Config{MinPixels: 1}).Find(m, lum)
	if len(regions) != 1 {
		t.Fatalf("expected one component, got %d", len(regions))
	}
	r := regions[0]
	if r.Luminance == nil || r.Luminance[0] != 10 || r.Luminance[5] != 60 {
		t.Fatalf("luminance crop mismatch: %v", r.Luminance)
	}
}

func TestLabelWithinFindsAllParts(t *testing.T) {
	// Fraction-like layout: numerator, bar, denominator as separate components.
	m := maskFrom(
		"..##..",
		"......",
		"######",
		"......",
		"..##..",
	)
	parts := LabelWithin(m, image.Rect(0, 0, 6, 5))
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
}

func TestLabelWithinRespectsRect(t *testing.T) {
	m := maskFrom(
		"##....##",
		"##....##",
	)
	parts := LabelWithin(m, image.Rect(0, 0, 4, 2))
	if len(parts) != 1 {
		t.Fatalf("expected only the left part, got %d", len(parts))
	}
}

func TestLabelWithinOffsetRect(t *testing.T) {
	// The rect sits away from the origin: extents must come back in page
	// coordinates while the label plane stays rect-sized.
	m := maskFrom(
		"........",
		"....##..",
		"........",
		"....###.",
	)
	parts := LabelWithin(m, image.Rect(3, 0, 8, 4))
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0] != image.Rect(4, 1, 6, 2) {
		t.Fatalf("unexpected first part extent %v", parts[0])
	}
	if parts[1] != image.Rect(4, 3, 7, 4) {
		t.Fatalf("unexpected second part extent %v", parts[1])
	}
}

func TestRegionDensity(t *testing.T) {
	m := maskFrom(
		"#.",
		".#",
	)
	regions := NewFinder(Config{MinPixels: 1}).Find(m, nil)
	if len(regions) != 1 {
		t.Fatalf("expected one 8-connected component, got %d", len(regions))
	}
	if d := regions[0].Density(); d != 0.5 {
		t.Fatalf("expected density 0.5, got %f", d)
	}
}

func TestFindLargeDenseMaskDoesNotOverflow(t *testing.T) {
	// A fully dark 512x512 block exercises the explicit stack on a dense mask.
	w, h := 512, 512
	m := &preprocess.BinaryMask{Width: w, Height: h, Pix: make([]byte, w*h), Scale: 1.0}
	for i := range m.Pix {
		m.Pix[i] = 1
	}
	regions := NewFinder(DefaultConfig()).Find(m, nil)
	if len(regions) != 1 {
		t.Fatalf("expected one giant component, got %d", len(regions))
	}
	if regions[0].PixelCount != w*h {
		t.Fatalf("expected %d pixels, got %d", w*h, regions[0].PixelCount)
	}
}
