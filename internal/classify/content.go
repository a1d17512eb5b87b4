package classify

import (
	"fmt"

	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/region"
)

// ContentType labels what a candidate region contains.
type ContentType string

const (
	ContentFormula ContentType = "formula"
	ContentImage   ContentType = "image"
	ContentTable   ContentType = "table"
	ContentText    ContentType = "text"
)

// Result holds per-type scores with the selected type and the reasoning that
// produced it. Scores are normalized to sum to 1 when any signal fired.
type Result struct {
	Type      ContentType             `json:"type"`
	Scores    map[ContentType]float64 `json:"scores"`
	Reasoning []string                `json:"reasoning,omitempty"`
}

// Classifier scores content types from region features.
type Classifier struct{}

// NewClassifier creates a content classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify produces a Result for the region. Ties resolve toward text, the
// conservative default: a missed formula is cheaper than a false flag.
func (c *Classifier) Classify(r *region.Region, f feature.MathFeatures) Result {
	res := Result{Scores: map[ContentType]float64{}}

	if r == nil || r.PixelCount == 0 {
		res.Type = ContentText
		res.Scores[ContentText] = 1
		res.Reasoning = append(res.Reasoning, "blank region defaults to text")
		return res
	}

	formula := c.formulaScore(f, &res)
	img := c.imageScore(f, &res)
	table := c.tableScore(f, &res)
	text := c.textScore(f, &res)

	res.Scores[ContentFormula] = formula
	res.Scores[ContentImage] = img
	res.Scores[ContentTable] = table
	res.Scores[ContentText] = text

	normalizeScores(res.Scores)

	// Highest score wins; text wins ties.
	best := ContentText
	bestScore := res.Scores[ContentText]
	for _, ct := range []ContentType{ContentFormula, ContentImage, ContentTable} {
		if res.Scores[ct] > bestScore {
			best = ct
			bestScore = res.Scores[ct]
		}
	}
	res.Type = best
	return res
}

// formulaScore weighs the symbolic flags heavily; they are the strongest
// formula signal available.
func (c *Classifier) formulaScore(f feature.MathFeatures, res *Result) float64 {
	score := 0.0
	if n := f.SymbolFlagCount(); n > 0 {
		score += 0.25 * float64(min(n, 3))
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("%d math symbol flags set", n))
	}
	if f.UsesMathFont {
		score += 0.25
		res.Reasoning = append(res.Reasoning, "math font in text layout")
	}
	if f.VerticalComplexity > 1.3 {
		score += 0.2
		res.Reasoning = append(res.Reasoning, "stacked vertical structure")
	}
	if f.HorizontalSpacing > 1.5 {
		score += 0.1
	}
	if f.VAlign == feature.AlignRaised || f.VAlign == feature.AlignLowered {
		score += 0.1
	}
	return score
}

// imageScore favors dense, non-uniform, edge-heavy regions typical of
// photographs and figures.
func (c *Classifier) imageScore(f feature.MathFeatures, res *Result) float64 {
	score := 0.0
	if f.Density > 0.5 {
		score += 0.35
	}
	if f.Uniformity < 0.5 {
		score += 0.3
		res.Reasoning = append(res.Reasoning, "low row uniformity suggests raster content")
	}
	if f.EdgeDensity > 0.4 {
		score += 0.2
	}
	if f.AspectRatio > 0.5 && f.AspectRatio < 2.5 && f.Density > 0.4 {
		score += 0.1
	}
	return score
}

// tableScore looks for bracket/grid regularity over a wide area.
func (c *Classifier) tableScore(f feature.MathFeatures, res *Result) float64 {
	score := 0.0
	if f.HasMatrixBrackets && f.AspectRatio > 2.0 {
		score += 0.3
		res.Reasoning = append(res.Reasoning, "wide ruled structure")
	}
	if f.VerticalComplexity > 2.0 && f.HorizontalSpacing > 2.0 {
		score += 0.3
	}
	if f.Uniformity > 0.7 && f.AspectRatio > 3.0 {
		score += 0.2
	}
	return score
}

// textScore is the default: uniform, low-edge, line-shaped content.
func (c *Classifier) textScore(f feature.MathFeatures, res *Result) float64 {
	score := 0.2 // conservative prior
	if f.Uniformity > 0.6 && f.EdgeDensity < 0.3 {
		score += 0.25
	}
	if f.VerticalComplexity <= 1.2 {
		score += 0.2
	}
	if f.SymbolFlagCount() == 0 && !f.UsesMathFont {
		score += 0.15
	}
	if f.SurroundingTextDensity > 0.4 {
		score += 0.1
	}
	return score
}

func normalizeScores(scores map[ContentType]float64) {
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	if sum <= 0 {
		scores[ContentText] = 1
		return
	}
	for k, v := range scores {
		scores[k] = v / sum
	}
}
