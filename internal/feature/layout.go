package feature

import (
	"github.com/MeKo-Tech/mathfind/internal/region"
)

// aspectRatio returns width/height; degenerate regions yield 0.
func aspectRatio(r *region.Region) float64 {
	if r.Height() == 0 {
		return 0
	}
	return float64(r.Width()) / float64(r.Height())
}

// verticalComplexity is the mean number of distinct vertical dark segments
// per column. Plain text hovers near 1; stacked structure (fractions,
// scripts, matrices) pushes it higher.
func verticalComplexity(r *region.Region) float64 {
	w, h := r.Width(), r.Height()
	if w == 0 {
		return 0
	}
	total := 0
	cols := 0
	for x := 0; x < w; x++ {
		segments := 0
		inSegment := false
		for y := 0; y < h; y++ {
			if r.MaskAt(x, y) {
				if !inSegment {
					segments++
					inSegment = true
				}
			} else {
				inSegment = false
			}
		}
		if segments > 0 {
			total += segments
			cols++
		}
	}
	if cols == 0 {
		return 0
	}
	return float64(total) / float64(cols)
}

// horizontalSpacing is the mean number of interior background gaps per row.
// Formulas tend to have more inter-symbol gaps than continuous text strokes.
func horizontalSpacing(r *region.Region) float64 {
	w, h := r.Width(), r.Height()
	if h == 0 {
		return 0
	}
	total := 0
	rows := 0
	for y := 0; y < h; y++ {
		gaps := 0
		seenDark := false
		inGap := false
		for x := 0; x < w; x++ {
			if r.MaskAt(x, y) {
				if inGap {
					gaps++ // gap closed by more content
				}
				seenDark = true
				inGap = false
			} else if seenDark {
				inGap = true
			}
		}
		if seenDark {
			total += gaps
			rows++
		}
	}
	if rows == 0 {
		return 0
	}
	return float64(total) / float64(rows)
}
