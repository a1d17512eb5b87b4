package detect

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/feature"
)

func whitePage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func fillDark(img *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
}

// drawSummationGlyph paints a sigma: full-width top and bottom bars joined by
// a thick diagonal descending from right to left. Strokes are wide enough to
// survive the denoise median filter.
func drawSummationGlyph(img *image.RGBA, r image.Rectangle) {
	w, h := r.Dx(), r.Dy()
	barH := h / 8
	stroke := w / 6
	fillDark(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+barH))
	fillDark(img, image.Rect(r.Min.X, r.Max.Y-barH, r.Max.X, r.Max.Y))
	innerH := h - 2*barH
	for i := 0; i < innerH; i++ {
		t := float64(i) / float64(innerH-1)
		x := r.Min.X + int(float64(w-stroke)*(1-t))
		y := r.Min.Y + barH + i
		fillDark(img, image.Rect(x, y, x+stroke, y+1))
	}
}

func TestDetectSummationGlyph(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	glyph := image.Rect(120, 70, 180, 130)
	img := whitePage(300, 200)
	drawSummationGlyph(img, glyph)
	page := PageInput{
		Image:  img,
		Number: 1,
		TextLines: []feature.TextLine{
			{Rect: image.Rect(60, 85, 250, 115), MathFont: true},
		},
	}

	out, err := d.Detect(context.Background(), page, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("summation glyph went undetected")
	}

	bounds := image.Rect(0, 0, 300, 200)
	for i, f := range out {
		if f.Rect.Dx() <= 0 || f.Rect.Dy() <= 0 {
			t.Fatalf("detection %d has degenerate rect %v", i, f.Rect)
		}
		if !f.Rect.In(bounds) {
			t.Fatalf("detection %d rect %v escapes the page", i, f.Rect)
		}
		if f.ContentType != classify.ContentFormula {
			t.Fatalf("detection %d content type = %q", i, f.ContentType)
		}
		o := f.Confidence.Overall
		if math.IsNaN(o) || o <= 0 || o > 1 {
			t.Fatalf("detection %d confidence = %v", i, o)
		}
		switch f.Confidence.Level {
		case confidence.LevelHigh, confidence.LevelMedium, confidence.LevelLow:
		default:
			t.Fatalf("detection %d has unset confidence level %q", i, f.Confidence.Level)
		}
		if f.ID == "" || f.PageNumber != 1 {
			t.Fatalf("detection %d identity = %q page %d", i, f.ID, f.PageNumber)
		}
	}
	if !out[0].Rect.Overlaps(glyph) {
		t.Fatalf("detection %v does not cover the glyph %v", out[0].Rect, glyph)
	}
	if !out[0].Features.HasSummation {
		t.Fatal("summation shape flag not set on the detection")
	}
}

func TestDetectBlankPage(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := d.Detect(context.Background(), PageInput{Image: whitePage(300, 200)}, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("blank page produced %d detections", len(out))
	}
}

func TestDetectNilImage(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := d.Detect(context.Background(), PageInput{}, DefaultOptions()); err == nil {
		t.Fatal("nil image should fail")
	}
}

func TestDetectTiledBlankPage(t *testing.T) {
	if testing.Short() {
		t.Skip("large allocation")
	}
	d, err := NewBuilder().WithMaxWorkers(4).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Above the tiling threshold: exercises the worker pool end to end.
	out, err := d.Detect(context.Background(), PageInput{Image: whitePage(2100, 3100)}, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("blank tiled page produced %d detections", len(out))
	}
}

func TestDetectCancelledContext(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, PageInput{Image: whitePage(300, 200)}, DefaultOptions()); err == nil {
		t.Fatal("cancelled context should fail")
	}
}

func TestDetectDocumentSequential(t *testing.T) {
	d, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pages := []PageInput{
		{Image: whitePage(300, 200), Number: 1},
		{Image: whitePage(300, 200), Number: 2},
	}
	var reports []int
	out, err := d.DetectDocument(context.Background(), pages, DocumentOptions{
		Options: DefaultOptions(),
		Progress: func(done, total int) {
			if total != 2 {
				t.Fatalf("progress total = %d, want 2", total)
			}
			reports = append(reports, done)
		},
	})
	if err != nil {
		t.Fatalf("DetectDocument: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d page results, want 2", len(out))
	}
	if len(reports) != 2 || reports[0] != 1 || reports[1] != 2 {
		t.Fatalf("progress reports = %v, want [1 2]", reports)
	}
	// Page buffers are released after processing.
	if pages[0].Image != nil || pages[1].Image != nil {
		t.Fatal("page buffers not released")
	}
}

func TestOptionsFilter(t *testing.T) {
	in := []DetectedFormula{
		func() DetectedFormula {
			f := det(image.Rect(0, 0, 10, 10), 0.9, 0, 0)
			f.FormulaType = "display"
			return f
		}(),
		func() DetectedFormula {
			f := det(image.Rect(20, 0, 30, 10), 0.5, 0, 1)
			f.FormulaType = "inline"
			return f
		}(),
		func() DetectedFormula {
			f := det(image.Rect(40, 0, 50, 10), 0.95, 0, 2)
			f.FormulaType = "numbered"
			return f
		}(),
	}

	opts := DefaultOptions()
	if got := opts.Filter(in); len(got) != 3 {
		t.Fatalf("default filter kept %d, want 3", len(got))
	}

	opts.MinConfidence = 0.8
	if got := opts.Filter(in); len(got) != 2 {
		t.Fatalf("confidence filter kept %d, want 2", len(got))
	}

	opts = DefaultOptions()
	opts.IncludeInline = false
	if got := opts.Filter(in); len(got) != 2 {
		t.Fatalf("display-only filter kept %d, want 2", len(got))
	}

	opts = DefaultOptions()
	opts.IncludeDisplay = false
	got := opts.Filter(in)
	if len(got) != 1 || got[0].FormulaType != "inline" {
		t.Fatalf("inline-only filter kept %v", got)
	}
}

func TestConfigFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal configs must fingerprint equally")
	}
	b.Preprocess.TargetResolution = 1200
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("changed preprocessing must change the fingerprint")
	}
	// Worker count does not affect results, so it must not affect the key.
	c := DefaultConfig()
	c.MaxWorkers = 1
	if a.Fingerprint() != c.Fingerprint() {
		t.Fatal("worker count must not change the fingerprint")
	}
}

func TestHashPage(t *testing.T) {
	a := whitePage(100, 80)
	b := whitePage(100, 80)
	if HashPage(a) != HashPage(b) {
		t.Fatal("identical pages must hash equally")
	}
	b.SetRGBA(50, 40, color.RGBA{A: 255})
	if HashPage(a) == HashPage(b) {
		t.Fatal("differing sampled content must change the hash")
	}
	if HashPage(whitePage(100, 80)) == HashPage(whitePage(80, 100)) {
		t.Fatal("dimensions must participate in the hash")
	}
	if HashPage(nil) != 0 {
		t.Fatal("nil image hashes to zero")
	}
}

func TestBuilderOptions(t *testing.T) {
	d, err := NewBuilder().
		WithTargetResolution(1600).
		WithMaxWorkers(2).
		WithTimeout(5 * time.Second).
		WithConfidenceThresholds(0.9, 0.7).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cfg := d.Config()
	if cfg.Preprocess.TargetResolution != 1600 {
		t.Fatalf("target resolution = %d", cfg.Preprocess.TargetResolution)
	}
	if cfg.MaxWorkers != 2 || cfg.Timeout != 5*time.Second {
		t.Fatalf("workers/timeout = %d/%v", cfg.MaxWorkers, cfg.Timeout)
	}
	if cfg.Confidence.Thresholds.High != 0.9 || cfg.Confidence.Thresholds.Medium != 0.7 {
		t.Fatalf("thresholds = %+v", cfg.Confidence.Thresholds)
	}
}
