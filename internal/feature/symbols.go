package feature

import (
	"github.com/MeKo-Tech/mathfind/internal/region"
)

// Symbol-shape heuristics. Each detector works on the region-local binary
// mask; none of them is a trained classifier.

// detectGreek flags regions whose shape suggests a Greek letter: heavy
// curvature, a closed loop, a pi-like frame, or a triangular (delta) profile.
func detectGreek(r *region.Region) bool {
	return hasCurvedProfile(r) || hasClosedLoop(r) || hasPiShape(r) || hasTriangularShape(r)
}

// hasCurvedProfile counts direction reversals of the per-column vertical
// centroid. Curved glyphs reverse direction in well over 30% of columns;
// straight strokes almost never do.
func hasCurvedProfile(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 3 || h < 3 {
		return false
	}
	centroids := make([]float64, 0, w)
	for x := 0; x < w; x++ {
		sum, n := 0, 0
		for y := 0; y < h; y++ {
			if r.MaskAt(x, y) {
				sum += y
				n++
			}
		}
		if n > 0 {
			centroids = append(centroids, float64(sum)/float64(n))
		}
	}
	if len(centroids) < 3 {
		return false
	}
	reversals := 0
	prevDir := 0
	for i := 1; i < len(centroids); i++ {
		d := centroids[i] - centroids[i-1]
		dir := 0
		if d > 0.5 {
			dir = 1
		} else if d < -0.5 {
			dir = -1
		}
		if dir != 0 && prevDir != 0 && dir != prevDir {
			reversals++
		}
		if dir != 0 {
			prevDir = dir
		}
	}
	return float64(reversals) > 0.3*float64(len(centroids))
}

// hasClosedLoop looks for a bounded island of background pixels (the interior
// of theta, phi, omicron and similar) sized between 5 pixels and 30% of the
// region area. Background reachable from the region border is not a loop.
func hasClosedLoop(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	area := w * h
	if area < 16 {
		return false
	}

	const (
		unvisited = 0
		exterior  = 1
		visited   = 2
	)
	state := make([]byte, area)

	// Flood the exterior background from all border pixels.
	stack := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		i := y*w + x
		if state[i] == unvisited && r.Mask[i] == 0 {
			state[i] = exterior
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}

	// Any remaining background component is enclosed; measure its size.
	for start := 0; start < area; start++ {
		if state[start] != unvisited || r.Mask[start] != 0 {
			continue
		}
		size := 0
		state[start] = visited
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := i%w, i/w
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if state[ni] == unvisited && r.Mask[ni] == 0 {
					state[ni] = visited
					stack = append(stack, ni)
				}
			}
		}
		if size >= 5 && float64(size) <= 0.3*float64(area) {
			return true
		}
	}
	return false
}

// hasPiShape matches a wide horizontal run near the top plus two long
// vertical runs (pi, product sign, capital Pi).
func hasPiShape(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 4 || h < 4 {
		return false
	}
	topBar := false
	topRows := maxInt(1, h*3/10)
	for y := 0; y < topRows; y++ {
		if longestRun(r, y) >= w*6/10 {
			topBar = true
			break
		}
	}
	if !topBar {
		return false
	}
	// Two separate columns with long vertical runs.
	legs := 0
	lastLeg := -2
	for x := 0; x < w; x++ {
		if columnRunLength(r, x) >= h*6/10 {
			if x > lastLeg+1 {
				legs++
			}
			lastLeg = x
		}
	}
	return legs >= 2
}

// hasTriangularShape matches a delta-like profile: row width grows
// monotonically from top to bottom and the base is much wider than the apex.
func hasTriangularShape(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 4 || h < 4 {
		return false
	}
	widths := make([]int, 0, h)
	for y := 0; y < h; y++ {
		rw := rowSpan(r, y)
		if rw > 0 {
			widths = append(widths, rw)
		}
	}
	if len(widths) < 4 {
		return false
	}
	violations := 0
	for i := 1; i < len(widths); i++ {
		if widths[i] < widths[i-1]-1 {
			violations++
		}
	}
	if float64(violations) > 0.15*float64(len(widths)) {
		return false
	}
	return widths[len(widths)-1] >= 2*maxInt(1, widths[0]) && widths[len(widths)-1] >= w*6/10
}

// detectIntegral requires a tall region whose per-row horizontal center of
// mass traces an S-curve (reverses horizontal direction at least once).
func detectIntegral(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if h < 3 || float64(h) < 1.5*float64(w) {
		return false
	}
	centroids := make([]float64, 0, h)
	for y := 0; y < h; y++ {
		sum, n := 0, 0
		for x := 0; x < w; x++ {
			if r.MaskAt(x, y) {
				sum += x
				n++
			}
		}
		if n > 0 {
			centroids = append(centroids, float64(sum)/float64(n))
		}
	}
	if len(centroids) < 5 {
		return false
	}
	reversals := 0
	prevDir := 0
	for i := 1; i < len(centroids); i++ {
		d := centroids[i] - centroids[i-1]
		dir := 0
		if d > 0.3 {
			dir = 1
		} else if d < -0.3 {
			dir = -1
		}
		if dir != 0 && prevDir != 0 && dir != prevDir {
			reversals++
		}
		if dir != 0 {
			prevDir = dir
		}
	}
	return reversals >= 1
}

// detectSummation matches sigma's Z-shape (top and bottom bars joined by a
// diagonal) or the pi-shape used by the product sign.
func detectSummation(r *region.Region) bool {
	return hasZShape(r) || hasPiShape(r)
}

func hasZShape(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 4 || h < 5 {
		return false
	}
	topRows := maxInt(1, h/4)
	topBar, bottomBar := false, false
	for y := 0; y < topRows; y++ {
		if longestRun(r, y) >= w/2 {
			topBar = true
			break
		}
	}
	for y := h - topRows; y < h; y++ {
		if longestRun(r, y) >= w/2 {
			bottomBar = true
			break
		}
	}
	if !topBar || !bottomBar {
		return false
	}
	// Diagonal through the middle: centroid x must sweep across at least 40%
	// of the width between the bars, in one dominant direction.
	midTop, midBot := topRows, h-topRows
	if midBot-midTop < 2 {
		return false
	}
	var first, last float64
	seen := 0
	for y := midTop; y < midBot; y++ {
		sum, n := 0, 0
		for x := 0; x < w; x++ {
			if r.MaskAt(x, y) {
				sum += x
				n++
			}
		}
		if n == 0 {
			continue
		}
		c := float64(sum) / float64(n)
		if seen == 0 {
			first = c
		}
		last = c
		seen++
	}
	if seen < (midBot-midTop)/2 {
		return false
	}
	travel := first - last
	if travel < 0 {
		travel = -travel
	}
	return travel >= 0.4*float64(w)
}

// detectFractionLine looks for a near-full-width scanline in the middle 40%
// of the rows with dark content strictly above and strictly below it.
func detectFractionLine(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 3 || h < 3 {
		return false
	}
	y0 := int(0.3 * float64(h))
	y1 := int(0.7 * float64(h))
	for y := y0; y <= y1 && y < h; y++ {
		if rowCount(r, y) < w*6/10 {
			continue
		}
		above, below := false, false
		for yy := 0; yy < y-1 && !above; yy++ {
			if rowCount(r, yy) > 0 {
				above = true
			}
		}
		for yy := y + 2; yy < h && !below; yy++ {
			if rowCount(r, yy) > 0 {
				below = true
			}
		}
		if above && below {
			return true
		}
	}
	return false
}

// detectScripts finds the densest contiguous row band (the main content) via
// a sliding window, then flags low-density bands separated from it by a
// content gap above (superscript) or below (subscript).
func detectScripts(r *region.Region) (superscript, subscript bool) {
	h := r.Height()
	if h < 4 {
		return false, false
	}
	profile := make([]int, h)
	for y := 0; y < h; y++ {
		profile[y] = rowCount(r, y)
	}

	window := maxInt(1, h/3)
	bandTop, bandSum := 0, 0
	cur := 0
	for y := 0; y < window; y++ {
		cur += profile[y]
	}
	bandSum = cur
	for y := 1; y+window <= h; y++ {
		cur += profile[y+window-1] - profile[y-1]
		if cur > bandSum {
			bandSum = cur
			bandTop = y
		}
	}
	if bandSum == 0 {
		return false, false
	}
	bandBot := bandTop + window - 1

	superscript = hasDetachedBand(profile, bandTop-1, -1)
	subscript = hasDetachedBand(profile, bandBot+1, 1)
	return superscript, subscript
}

// hasDetachedBand walks the row profile away from the main band in direction
// step and reports whether dark rows exist beyond a content gap.
func hasDetachedBand(profile []int, start, step int) bool {
	gapSeen := false
	for y := start; y >= 0 && y < len(profile); y += step {
		if profile[y] == 0 {
			gapSeen = true
			continue
		}
		if gapSeen {
			return true
		}
	}
	return false
}

// detectMatrixBrackets requires long vertical runs in both the leftmost and
// rightmost 20% of the columns with non-trivial content between them.
func detectMatrixBrackets(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 5 || h < 4 {
		return false
	}
	edge := maxInt(1, w/5)
	left, right := false, false
	for x := 0; x < edge; x++ {
		if columnRunLength(r, x) >= h*6/10 {
			left = true
			break
		}
	}
	for x := w - edge; x < w; x++ {
		if columnRunLength(r, x) >= h*6/10 {
			right = true
			break
		}
	}
	if !left || !right {
		return false
	}
	interior := 0
	for y := 0; y < h; y++ {
		for x := edge; x < w-edge; x++ {
			if r.MaskAt(x, y) {
				interior++
			}
		}
	}
	return interior >= maxInt(4, (w-2*edge)*h/20)
}

// detectRoot matches a radical: a checkmark rising through the left third
// combined with a horizontal line along the top.
func detectRoot(r *region.Region) bool {
	w, h := r.Width(), r.Height()
	if w < 6 || h < 4 {
		return false
	}
	third := w / 3
	if third < 2 {
		return false
	}
	// Topmost dark pixel per column must trend upward (decreasing y) across
	// the left third.
	rising := 0
	valid := 0
	prevTop := -1
	for x := 0; x < third; x++ {
		top := -1
		for y := 0; y < h; y++ {
			if r.MaskAt(x, y) {
				top = y
				break
			}
		}
		if top < 0 {
			continue
		}
		if prevTop >= 0 {
			valid++
			if top <= prevTop {
				rising++
			}
		}
		prevTop = top
	}
	if valid == 0 || float64(rising) < 0.6*float64(valid) {
		return false
	}
	// Horizontal vinculum in the top quarter, extending past the left third.
	topRows := maxInt(1, h/4)
	for y := 0; y < topRows; y++ {
		run := 0
		for x := third; x < w; x++ {
			if r.MaskAt(x, y) {
				run++
				if run >= (w-third)*6/10 {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

// rowCount returns the number of dark pixels in row y.
func rowCount(r *region.Region, y int) int {
	n := 0
	for x := 0; x < r.Width(); x++ {
		if r.MaskAt(x, y) {
			n++
		}
	}
	return n
}

// rowSpan returns the horizontal extent of dark pixels in row y.
func rowSpan(r *region.Region, y int) int {
	first, last := -1, -1
	for x := 0; x < r.Width(); x++ {
		if r.MaskAt(x, y) {
			if first < 0 {
				first = x
			}
			last = x
		}
	}
	if first < 0 {
		return 0
	}
	return last - first + 1
}

// longestRun returns the longest contiguous dark run in row y.
func longestRun(r *region.Region, y int) int {
	best, run := 0, 0
	for x := 0; x < r.Width(); x++ {
		if r.MaskAt(x, y) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// columnRunLength returns the longest contiguous dark run in column x.
func columnRunLength(r *region.Region, x int) int {
	best, run := 0, 0
	for y := 0; y < r.Height(); y++ {
		if r.MaskAt(x, y) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
