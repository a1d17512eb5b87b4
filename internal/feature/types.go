package feature

import "image"

// TextLine is a positional text-layout hint supplied by the caller (e.g. from
// a PDF text layer). MathFont marks runs rendered in a math-style font.
type TextLine struct {
	Rect     image.Rectangle `json:"rect"`
	MathFont bool            `json:"math_font"`
}

// RegionContext carries page-level context for feature extraction.
type RegionContext struct {
	PageWidth  int
	PageHeight int
	Neighbors  []image.Rectangle
	TextLines  []TextLine
}

// HorizontalAlignment categorizes a region's horizontal position on the page.
type HorizontalAlignment string

const (
	AlignLeft   HorizontalAlignment = "left"
	AlignCenter HorizontalAlignment = "center"
	AlignRight  HorizontalAlignment = "right"
)

// VerticalAlignment categorizes a region's vertical relation to the nearest
// text line.
type VerticalAlignment string

const (
	AlignBaseline VerticalAlignment = "baseline"
	AlignRaised   VerticalAlignment = "raised"
	AlignLowered  VerticalAlignment = "lowered"
	AlignIsolated VerticalAlignment = "isolated"
)

// MathFeatures is the immutable per-region feature record consumed by the
// classifiers and the confidence scorer.
type MathFeatures struct {
	// Symbol flags: geometric shape heuristics over the region's binary mask.
	HasGreekLetter    bool `json:"has_greek_letter"`
	HasIntegral       bool `json:"has_integral"`
	HasSummation      bool `json:"has_summation"`
	HasFractionLine   bool `json:"has_fraction_line"`
	HasSuperscript    bool `json:"has_superscript"`
	HasSubscript      bool `json:"has_subscript"`
	HasMatrixBrackets bool `json:"has_matrix_brackets"`
	HasRoot           bool `json:"has_root"`

	// Layout
	AspectRatio        float64 `json:"aspect_ratio"`
	Density            float64 `json:"density"`
	VerticalComplexity float64 `json:"vertical_complexity"`
	HorizontalSpacing  float64 `json:"horizontal_spacing"`

	// Texture
	EdgeDensity float64 `json:"edge_density"`
	StrokeWidth float64 `json:"stroke_width"`
	Uniformity  float64 `json:"uniformity"`

	// Context
	SurroundingTextDensity float64             `json:"surrounding_text_density"`
	UsesMathFont           bool                `json:"uses_math_font"`
	HAlign                 HorizontalAlignment `json:"h_align"`
	VAlign                 VerticalAlignment   `json:"v_align"`
}

// SymbolFlagCount returns the number of set symbol flags.
func (f MathFeatures) SymbolFlagCount() int {
	n := 0
	for _, b := range []bool{
		f.HasGreekLetter, f.HasIntegral, f.HasSummation, f.HasFractionLine,
		f.HasSuperscript, f.HasSubscript, f.HasMatrixBrackets, f.HasRoot,
	} {
		if b {
			n++
		}
	}
	return n
}
