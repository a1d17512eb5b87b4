package confidence

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/boundary"
	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// Level is the discrete confidence bucket.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Breakdown exposes the four component scores behind an overall value.
type Breakdown struct {
	Feature   float64 `json:"feature"`
	Structure float64 `json:"structure"`
	Context   float64 `json:"context"`
	Boundary  float64 `json:"boundary"`
}

// Score is the combined confidence for one detection.
type Score struct {
	Overall float64   `json:"overall"`
	Parts   Breakdown `json:"parts"`
	Level   Level     `json:"level"`
}

// Weights configures the component mix. One policy serves both the
// single-page and tiled pipelines; the historical 35/25/20/20 single-page
// split was retired in favor of this one.
type Weights struct {
	Feature   float64 `mapstructure:"feature" yaml:"feature" json:"feature"`
	Structure float64 `mapstructure:"structure" yaml:"structure" json:"structure"`
	Context   float64 `mapstructure:"context" yaml:"context" json:"context"`
	Boundary  float64 `mapstructure:"boundary" yaml:"boundary" json:"boundary"`
}

// Thresholds configures the discrete level cutoffs.
type Thresholds struct {
	High   float64 `mapstructure:"high" yaml:"high" json:"high"`
	Medium float64 `mapstructure:"medium" yaml:"medium" json:"medium"`
}

// Config holds scorer options.
type Config struct {
	Weights    Weights    `mapstructure:"weights" yaml:"weights" json:"weights"`
	Thresholds Thresholds `mapstructure:"thresholds" yaml:"thresholds" json:"thresholds"`
}

// DefaultConfig returns the default scoring policy.
func DefaultConfig() Config {
	return Config{
		Weights:    Weights{Feature: 0.40, Structure: 0.30, Context: 0.20, Boundary: 0.10},
		Thresholds: Thresholds{High: 0.85, Medium: 0.60},
	}
}

// Input bundles everything one scoring decision needs.
type Input struct {
	Features       feature.MathFeatures
	Classification classify.Result
	FormulaType    classify.TypeResult
	Boundary       boundary.Refined
	PageWidth      int
	PageHeight     int
	// LocalFormulaDensity is the fraction of neighboring candidates that
	// classified as formulas; pages dense with math raise the prior.
	LocalFormulaDensity float64
}

// Scorer combines feature, structural, contextual and boundary signals.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer with the given policy.
func NewScorer(cfg Config) *Scorer {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultConfig().Weights
	}
	if cfg.Thresholds.High == 0 {
		cfg.Thresholds.High = DefaultConfig().Thresholds.High
	}
	if cfg.Thresholds.Medium == 0 {
		cfg.Thresholds.Medium = DefaultConfig().Thresholds.Medium
	}
	return &Scorer{cfg: cfg}
}

// Score computes the weighted overall confidence, clamped to [0,1], and its
// discrete level.
func (s *Scorer) Score(in Input) Score {
	parts := Breakdown{
		Feature:   featureScore(in.Features),
		Structure: structureScore(in.Features),
		Context:   contextScore(in),
		Boundary:  boundaryScore(in),
	}
	w := s.cfg.Weights
	overall := utils.Clamp01(
		w.Feature*parts.Feature +
			w.Structure*parts.Structure +
			w.Context*parts.Context +
			w.Boundary*parts.Boundary)

	return Score{Overall: overall, Parts: parts, Level: s.level(overall)}
}

func (s *Scorer) level(v float64) Level {
	switch {
	case v >= s.cfg.Thresholds.High:
		return LevelHigh
	case v >= s.cfg.Thresholds.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// featureScore counts matched symbol flags plus math-font usage, capped and
// normalized.
func featureScore(f feature.MathFeatures) float64 {
	score := 0.25 * float64(f.SymbolFlagCount())
	if f.UsesMathFont {
		score += 0.3
	}
	if f.HasGreekLetter {
		score += 0.1
	}
	return utils.Clamp01(score)
}

// structureScore rewards the presence of structural math constructs.
func structureScore(f feature.MathFeatures) float64 {
	score := 0.0
	if f.HasFractionLine {
		score += 0.3
	}
	if f.HasSuperscript || f.HasSubscript {
		score += 0.25
	}
	if f.HasRoot || f.HasIntegral || f.HasSummation {
		score += 0.25
	}
	if f.HasMatrixBrackets {
		score += 0.2
	}
	return utils.Clamp01(score)
}

// contextScore combines classification certainty with page-level priors.
func contextScore(in Input) float64 {
	score := 0.0
	// Classification certainty: margin of the formula score over the runner-up.
	formula := in.Classification.Scores[classify.ContentFormula]
	runnerUp := 0.0
	for t, v := range in.Classification.Scores {
		if t != classify.ContentFormula && v > runnerUp {
			runnerUp = v
		}
	}
	score += utils.Clamp01(formula-runnerUp+0.5) * 0.4

	// Formula-type prior: display and numbered outrank inline.
	switch in.FormulaType.Type {
	case classify.FormulaDisplay, classify.FormulaNumbered:
		score += 0.3
	case classify.FormulaInline:
		score += 0.15
	}

	score += 0.3 * utils.Clamp01(in.LocalFormulaDensity)
	return utils.Clamp01(score)
}

// boundaryScore checks size plausibility, aspect plausibility and contour
// completeness.
func boundaryScore(in Input) float64 {
	rect := in.Boundary.Rect
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return 0
	}
	score := 0.0

	// Size plausibility: reject implausibly tiny or page-sized boxes.
	area := rect.Dx() * rect.Dy()
	pageArea := in.PageWidth * in.PageHeight
	if area >= 64 && (pageArea == 0 || float64(area) < 0.5*float64(pageArea)) {
		score += 0.4
	}

	// Aspect plausibility: formulas are typically wider than tall.
	if rect.Dx() >= rect.Dy() {
		score += 0.3
	} else if float64(rect.Dy()) < 3*float64(rect.Dx()) {
		score += 0.15 // tall operators are plausible, extreme slivers are not
	}

	score += 0.3 * utils.Clamp01(in.Boundary.Tightness)
	return utils.Clamp01(score)
}

// PlausibleRect reports whether a rect can carry a detection at all; callers
// filter degenerate candidates before scoring.
func PlausibleRect(rect image.Rectangle, pageW, pageH int) bool {
	return rect.Dx() > 0 && rect.Dy() > 0 &&
		rect.Min.X >= 0 && rect.Min.Y >= 0 &&
		rect.Max.X <= pageW && rect.Max.Y <= pageH
}
