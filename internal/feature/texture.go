package feature

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/mathfind/internal/region"
)

// edgeDensity applies a Sobel operator to the region's luminance crop (or the
// mask scaled to 0/255 when no raster data is available) and returns the
// fraction of pixels whose gradient magnitude exceeds the edge threshold.
func edgeDensity(r *region.Region) float64 {
	w, h := r.Width(), r.Height()
	if w < 3 || h < 3 {
		return 0
	}
	plane := r.Luminance
	if plane == nil {
		plane = make([]byte, w*h)
		for i, v := range r.Mask {
			if v != 0 {
				plane[i] = 255
			}
		}
	}
	const edgeThreshold = 128.0
	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -int(plane[(y-1)*w+x-1]) + int(plane[(y-1)*w+x+1]) +
				-2*int(plane[y*w+x-1]) + 2*int(plane[y*w+x+1]) +
				-int(plane[(y+1)*w+x-1]) + int(plane[(y+1)*w+x+1])
			gy := -int(plane[(y-1)*w+x-1]) - 2*int(plane[(y-1)*w+x]) - int(plane[(y-1)*w+x+1]) +
				int(plane[(y+1)*w+x-1]) + 2*int(plane[(y+1)*w+x]) + int(plane[(y+1)*w+x+1])
			if math.Hypot(float64(gx), float64(gy)) > edgeThreshold {
				edges++
			}
		}
	}
	return float64(edges) / float64((w-2)*(h-2))
}

// strokeWidth estimates the typical stroke thickness as the median length of
// contiguous dark runs across all rows.
func strokeWidth(r *region.Region) float64 {
	w, h := r.Width(), r.Height()
	runs := make([]int, 0, h*2)
	for y := 0; y < h; y++ {
		run := 0
		for x := 0; x < w; x++ {
			if r.MaskAt(x, y) {
				run++
			} else if run > 0 {
				runs = append(runs, run)
				run = 0
			}
		}
		if run > 0 {
			runs = append(runs, run)
		}
	}
	if len(runs) == 0 {
		return 0
	}
	sort.Ints(runs)
	return float64(runs[len(runs)/2])
}

// uniformity is 1 - stddev of the per-row dark-pixel density, clamped to
// [0,1]. Text and line art are highly uniform; photographs are not.
func uniformity(r *region.Region) float64 {
	w, h := r.Width(), r.Height()
	if w == 0 || h == 0 {
		return 0
	}
	densities := make([]float64, h)
	var mean float64
	for y := 0; y < h; y++ {
		densities[y] = float64(rowCount(r, y)) / float64(w)
		mean += densities[y]
	}
	mean /= float64(h)
	var variance float64
	for _, d := range densities {
		diff := d - mean
		variance += diff * diff
	}
	variance /= float64(h)
	u := 1 - math.Sqrt(variance)
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}
