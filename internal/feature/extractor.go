package feature

import (
	"errors"

	"github.com/MeKo-Tech/mathfind/internal/region"
)

// Extractor computes MathFeatures for candidate regions.
type Extractor struct{}

// NewExtractor creates a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the full feature record for a region. The region's mask
// must be populated; the luminance crop is optional.
func (e *Extractor) Extract(r *region.Region, ctx RegionContext) (MathFeatures, error) {
	if r == nil || len(r.Mask) == 0 || r.Width() <= 0 || r.Height() <= 0 {
		return MathFeatures{}, errors.New("region has no mask data")
	}

	superscript, subscript := detectScripts(r)

	f := MathFeatures{
		HasGreekLetter:    detectGreek(r),
		HasIntegral:       detectIntegral(r),
		HasSummation:      detectSummation(r),
		HasFractionLine:   detectFractionLine(r),
		HasSuperscript:    superscript,
		HasSubscript:      subscript,
		HasMatrixBrackets: detectMatrixBrackets(r),
		HasRoot:           detectRoot(r),

		AspectRatio:        aspectRatio(r),
		Density:            r.Density(),
		VerticalComplexity: verticalComplexity(r),
		HorizontalSpacing:  horizontalSpacing(r),

		EdgeDensity: edgeDensity(r),
		StrokeWidth: strokeWidth(r),
		Uniformity:  uniformity(r),

		SurroundingTextDensity: surroundingTextDensity(r, ctx),
		UsesMathFont:           usesMathFont(r, ctx),
		HAlign:                 horizontalAlignment(r, ctx),
		VAlign:                 verticalAlignment(r, ctx),
	}
	return f, nil
}
