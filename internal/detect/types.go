package detect

import (
	"fmt"
	"image"

	"github.com/cespare/xxhash/v2"

	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// PageInput is one rasterized page handed to the detector. TextLines are
// optional positional hints from the caller's text layer; page coordinates.
type PageInput struct {
	Image     image.Image
	Number    int
	TextLines []feature.TextLine
}

// DetectedFormula is the engine's per-detection output record.
type DetectedFormula struct {
	ID         string `json:"id"`
	PageNumber int    `json:"page_number"`

	// Rect is in original page pixel coordinates. WorkRect is the same box
	// at the working (possibly downscaled) resolution; Scale converts
	// working to page coordinates (page = work / Scale).
	Rect     image.Rectangle `json:"rect"`
	WorkRect image.Rectangle `json:"work_rect"`
	Scale    float64         `json:"scale"`

	ContentType    classify.ContentType `json:"content_type"`
	FormulaType    classify.FormulaType `json:"formula_type"`
	Confidence     confidence.Score     `json:"confidence"`
	Features       feature.MathFeatures `json:"features"`
	Classification classify.Result      `json:"classification"`
	Contour        []utils.Point        `json:"-"`

	// tileIndex and candIndex record scan order for deterministic merging.
	tileIndex int
	candIndex int
}

// Options are per-call detection options.
type Options struct {
	// MinConfidence drops detections scoring below it. Filter options do
	// not participate in the cache fingerprint; cached entries hold the
	// unfiltered set and filters re-apply on every hit.
	MinConfidence  float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	IncludeInline  bool    `mapstructure:"include_inline" yaml:"include_inline" json:"include_inline"`
	IncludeDisplay bool    `mapstructure:"include_display" yaml:"include_display" json:"include_display"`
}

// DefaultOptions includes every formula type with no confidence floor.
func DefaultOptions() Options {
	return Options{IncludeInline: true, IncludeDisplay: true}
}

// Filter applies the caller's result filters to a detection list.
func (o Options) Filter(in []DetectedFormula) []DetectedFormula {
	out := make([]DetectedFormula, 0, len(in))
	for _, f := range in {
		if f.Confidence.Overall < o.MinConfidence {
			continue
		}
		switch f.FormulaType {
		case classify.FormulaInline:
			if !o.IncludeInline {
				continue
			}
		case classify.FormulaDisplay, classify.FormulaNumbered:
			if !o.IncludeDisplay {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// Fingerprint identifies the detection-affecting configuration for cache
// keying. Two detectors with equal fingerprints produce identical unfiltered
// results for the same page bytes.
func (c Config) Fingerprint() uint64 {
	s := fmt.Sprintf("pre:%d|%t|%t|%s;reg:%d;bnd:%d|%d|%.3f;conf:%.2f|%.2f|%.2f|%.2f|%.2f|%.2f;tile:%d",
		c.Preprocess.TargetResolution, c.Preprocess.Denoise,
		c.Preprocess.EnhanceContrast, c.Preprocess.Binarization,
		c.Region.MinPixels,
		c.Boundary.Padding, c.Boundary.FractionScan, c.Boundary.OperatorScanRatio,
		c.Confidence.Weights.Feature, c.Confidence.Weights.Structure,
		c.Confidence.Weights.Context, c.Confidence.Weights.Boundary,
		c.Confidence.Thresholds.High, c.Confidence.Thresholds.Medium,
		c.Tiling.TileSize)
	return xxhash.Sum64String(s)
}
