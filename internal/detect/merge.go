package detect

import (
	"sort"

	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// mergeWithinTile unions detections whose boxes overlap above the union
// threshold. Heavy overlap inside one tile means the finder split a single
// formula (a fraction's numerator and denominator, a script and its base);
// the union keeps the higher-confidence candidate's attributes under the
// combined box and the combined contour. Runs to a fixpoint.
func mergeWithinTile(fs []DetectedFormula, iouThreshold float64) []DetectedFormula {
	if len(fs) < 2 {
		return fs
	}
	merged := append([]DetectedFormula(nil), fs...)
	for {
		combined := false
		for i := 0; i < len(merged) && !combined; i++ {
			for j := i + 1; j < len(merged); j++ {
				iou := utils.IoU(utils.BoxFromRect(merged[i].Rect), utils.BoxFromRect(merged[j].Rect))
				if iou <= iouThreshold {
					continue
				}
				keep, drop := merged[i], merged[j]
				if drop.Confidence.Overall > keep.Confidence.Overall {
					keep, drop = drop, keep
				}
				keep.Rect = keep.Rect.Union(drop.Rect)
				keep.WorkRect = keep.WorkRect.Union(drop.WorkRect)
				keep.Contour = append(keep.Contour, drop.Contour...)
				if drop.candIndex < keep.candIndex {
					keep.candIndex = drop.candIndex
				}
				merged[i] = keep
				merged = append(merged[:j], merged[j+1:]...)
				combined = true
				break
			}
		}
		if !combined {
			return merged
		}
	}
}

// mergeResults deduplicates detections across tile seams: stable sort by
// confidence descending (ties broken by tile scan order, then detection
// index), then greedily keep each box unless it overlaps an already kept box
// above the suppression threshold. Idempotent; empty input yields empty
// output.
func mergeResults(fs []DetectedFormula, iouThreshold float64) []DetectedFormula {
	if len(fs) == 0 {
		return []DetectedFormula{}
	}

	sorted := append([]DetectedFormula(nil), fs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence.Overall != b.Confidence.Overall {
			return a.Confidence.Overall > b.Confidence.Overall
		}
		if a.tileIndex != b.tileIndex {
			return a.tileIndex < b.tileIndex
		}
		return a.candIndex < b.candIndex
	})

	kept := make([]DetectedFormula, 0, len(sorted))
	for _, f := range sorted {
		suppressed := false
		for _, k := range kept {
			if utils.IoU(utils.BoxFromRect(f.Rect), utils.BoxFromRect(k.Rect)) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, f)
		}
	}

	// Reading order for stable downstream IDs.
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Rect, kept[j].Rect
		if a.Min.Y != b.Min.Y {
			return a.Min.Y < b.Min.Y
		}
		return a.Min.X < b.Min.X
	})
	return kept
}
