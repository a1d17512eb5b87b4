package classify

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/mathfind/internal/feature"
)

// FormulaType distinguishes block-level from in-text formulas.
type FormulaType string

const (
	FormulaDisplay  FormulaType = "display"
	FormulaInline   FormulaType = "inline"
	FormulaNumbered FormulaType = "numbered"
)

// TypeResult carries the display/inline decision with its confidence.
type TypeResult struct {
	Type       FormulaType `json:"type"`
	Confidence float64     `json:"confidence"`
	Reasoning  []string    `json:"reasoning,omitempty"`
}

const (
	// centerOffsetRatio bounds how far a display formula's center may sit
	// from the page center, as a fraction of content width.
	centerOffsetRatio = 0.12
	// displayWidthRatio is the maximum width of a display formula relative
	// to content width.
	displayWidthRatio = 0.85
	// Numbered equations leave an asymmetric right margin in this band.
	numberedMarginMin = 0.12
	numberedMarginMax = 0.28
)

// TypeClassifier decides display vs. inline vs. numbered for
// formula-classified regions.
type TypeClassifier struct{}

// NewTypeClassifier creates a formula-type classifier.
func NewTypeClassifier() *TypeClassifier {
	return &TypeClassifier{}
}

// Classify types a formula region from its page geometry. The content width
// is the page width minus symmetric page margins estimated from text lines
// (falling back to the full page width).
func (tc *TypeClassifier) Classify(rect image.Rectangle, ctx feature.RegionContext) TypeResult {
	contentLeft, contentRight := contentBounds(ctx)
	contentWidth := float64(contentRight - contentLeft)
	if contentWidth <= 0 {
		return TypeResult{Type: FormulaInline, Confidence: 0.5,
			Reasoning: []string{"degenerate content width"}}
	}

	center := float64(rect.Min.X+rect.Max.X) / 2
	contentCenter := float64(contentLeft+contentRight) / 2
	offset := center - contentCenter
	if offset < 0 {
		offset = -offset
	}
	width := float64(rect.Dx())

	centered := offset < centerOffsetRatio*contentWidth
	narrow := width < displayWidthRatio*contentWidth

	if centered && narrow {
		res := TypeResult{Type: FormulaDisplay, Confidence: 0.8,
			Reasoning: []string{fmt.Sprintf("centered (offset %.0fpx) below %.0f%% of content width",
				offset, displayWidthRatio*100)}}

		// Asymmetric right margin in the numbered band promotes to numbered.
		leftMargin := float64(rect.Min.X - contentLeft)
		rightMargin := float64(contentRight - rect.Max.X)
		if rightMargin > leftMargin {
			ratio := rightMargin / contentWidth
			if ratio >= numberedMarginMin && ratio <= numberedMarginMax {
				res.Type = FormulaNumbered
				res.Confidence = 0.75
				res.Reasoning = append(res.Reasoning,
					fmt.Sprintf("asymmetric right margin %.0f%% of content width", ratio*100))
			}
		}
		return res
	}

	reason := "off-center"
	if centered {
		reason = "spans most of the content width"
	}
	return TypeResult{Type: FormulaInline, Confidence: 0.7, Reasoning: []string{reason}}
}

// contentBounds estimates the text content column from the layout hint,
// defaulting to the full page.
func contentBounds(ctx feature.RegionContext) (int, int) {
	left, right := 0, ctx.PageWidth
	if len(ctx.TextLines) == 0 {
		return left, right
	}
	minX, maxX := ctx.PageWidth, 0
	for _, tl := range ctx.TextLines {
		if tl.Rect.Min.X < minX {
			minX = tl.Rect.Min.X
		}
		if tl.Rect.Max.X > maxX {
			maxX = tl.Rect.Max.X
		}
	}
	if maxX > minX {
		return minX, maxX
	}
	return left, right
}
