package preprocess

// otsuThreshold computes the luminance threshold that maximizes inter-class
// variance between the dark and light pixel populations. The dark class spans
// bins [0, t] at the best split, so the returned cutoff is t+1: a pixel is ink
// iff its value is strictly below the result. An empty or single-mode
// histogram falls back to the simple cutoff.
func otsuThreshold(hist [256]int) int {
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return simpleThreshold
	}

	var totalSum float64
	for i, c := range hist {
		totalSum += float64(i) * float64(c)
	}

	var sumB float64
	wB := 0
	bestSplit := -1
	var maxVariance float64

	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		// Between-class variance
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestSplit = t
		}
	}
	if bestSplit < 0 {
		return simpleThreshold
	}
	return bestSplit + 1
}
