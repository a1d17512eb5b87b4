package detect

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

func det(rect image.Rectangle, conf float64, tile, cand int) DetectedFormula {
	return DetectedFormula{
		Rect:       rect,
		WorkRect:   rect,
		Scale:      1,
		Confidence: confidence.Score{Overall: conf},
		tileIndex:  tile,
		candIndex:  cand,
	}
}

func TestMergeResultsSuppressesDuplicate(t *testing.T) {
	a := det(image.Rect(100, 100, 150, 120), 0.9, 0, 0)
	b := det(image.Rect(102, 101, 152, 121), 0.85, 1, 0)

	out := mergeResults([]DetectedFormula{a, b}, suppressIoU)
	if len(out) != 1 {
		t.Fatalf("got %d detections, want 1", len(out))
	}
	if out[0].Confidence.Overall != 0.9 {
		t.Fatalf("kept confidence = %f, want 0.9", out[0].Confidence.Overall)
	}
	if out[0].Rect != a.Rect {
		t.Fatalf("kept rect = %v, want %v", out[0].Rect, a.Rect)
	}
}

func TestMergeResultsKeepsDistinctBoxes(t *testing.T) {
	a := det(image.Rect(100, 100, 150, 120), 0.9, 0, 0)
	b := det(image.Rect(130, 101, 180, 121), 0.85, 1, 0)

	out := mergeResults([]DetectedFormula{a, b}, suppressIoU)
	if len(out) != 2 {
		t.Fatalf("got %d detections, want 2", len(out))
	}
}

func TestMergeResultsEmpty(t *testing.T) {
	out := mergeResults([]DetectedFormula{}, suppressIoU)
	if out == nil || len(out) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", out)
	}
	if out := mergeResults(nil, suppressIoU); len(out) != 0 {
		t.Fatalf("nil input: got %d detections, want 0", len(out))
	}
}

func TestMergeResultsIdempotent(t *testing.T) {
	in := []DetectedFormula{
		det(image.Rect(100, 100, 150, 120), 0.9, 0, 0),
		det(image.Rect(102, 101, 152, 121), 0.85, 1, 0),
		det(image.Rect(300, 300, 360, 320), 0.7, 1, 1),
		det(image.Rect(500, 100, 560, 130), 0.95, 2, 0),
	}
	once := mergeResults(in, suppressIoU)
	twice := mergeResults(once, suppressIoU)
	if len(once) != len(twice) {
		t.Fatalf("idempotence broken: %d then %d detections", len(once), len(twice))
	}
	for i := range once {
		if once[i].Rect != twice[i].Rect {
			t.Fatalf("detection %d moved: %v then %v", i, once[i].Rect, twice[i].Rect)
		}
	}
}

func TestMergeResultsConfidenceTieUsesScanOrder(t *testing.T) {
	// Same confidence: the earlier tile wins.
	a := det(image.Rect(100, 100, 150, 120), 0.8, 2, 0)
	b := det(image.Rect(101, 100, 151, 120), 0.8, 1, 3)

	out := mergeResults([]DetectedFormula{a, b}, suppressIoU)
	if len(out) != 1 {
		t.Fatalf("got %d detections, want 1", len(out))
	}
	if out[0].tileIndex != 1 {
		t.Fatalf("kept tile = %d, want 1", out[0].tileIndex)
	}
}

func TestMergeResultsReadingOrder(t *testing.T) {
	in := []DetectedFormula{
		det(image.Rect(300, 500, 360, 520), 0.6, 0, 0),
		det(image.Rect(100, 100, 160, 120), 0.7, 0, 1),
		det(image.Rect(400, 100, 460, 120), 0.8, 0, 2),
	}
	out := mergeResults(in, suppressIoU)
	if len(out) != 3 {
		t.Fatalf("got %d detections, want 3", len(out))
	}
	if out[0].Rect.Min.X != 100 || out[1].Rect.Min.X != 400 || out[2].Rect.Min.Y != 500 {
		t.Fatalf("not in reading order: %v %v %v", out[0].Rect, out[1].Rect, out[2].Rect)
	}
}

func TestMergeWithinTileUnions(t *testing.T) {
	a := det(image.Rect(0, 0, 100, 40), 0.7, 0, 0)
	a.Contour = []utils.Point{{X: 0, Y: 0}, {X: 99, Y: 39}}
	b := det(image.Rect(0, 10, 100, 50), 0.5, 0, 1)
	b.Contour = []utils.Point{{X: 0, Y: 49}}

	out := mergeWithinTile([]DetectedFormula{a, b}, unionIoU)
	if len(out) != 1 {
		t.Fatalf("got %d detections, want 1", len(out))
	}
	if want := image.Rect(0, 0, 100, 50); out[0].Rect != want {
		t.Fatalf("union rect = %v, want %v", out[0].Rect, want)
	}
	if out[0].Confidence.Overall != 0.7 {
		t.Fatalf("union confidence = %f, want the stronger 0.7", out[0].Confidence.Overall)
	}
	if out[0].candIndex != 0 {
		t.Fatalf("union candIndex = %d, want 0", out[0].candIndex)
	}
	if len(out[0].Contour) != 3 {
		t.Fatalf("union contour has %d points, want both candidates' 3", len(out[0].Contour))
	}
}

func TestMergeWithinTileKeepsLightOverlap(t *testing.T) {
	// IoU 1000/6000 stays below the union threshold.
	a := det(image.Rect(0, 0, 100, 40), 0.7, 0, 0)
	b := det(image.Rect(0, 30, 100, 60), 0.5, 0, 1)

	out := mergeWithinTile([]DetectedFormula{a, b}, unionIoU)
	if len(out) != 2 {
		t.Fatalf("got %d detections, want 2", len(out))
	}
}
