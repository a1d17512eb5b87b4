package boundary

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/preprocess"
	"github.com/MeKo-Tech/mathfind/internal/region"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// Refined is the tightened, extended boundary for one detection candidate.
// Coordinates are in the same space as the input region.
type Refined struct {
	Rect      image.Rectangle
	Contour   []utils.Point
	Tightness float64 // contour pixels / approximate perimeter, in [0,1]
}

// Config holds boundary-refinement options.
type Config struct {
	// Padding is the safety margin added on all sides, clamped to the page.
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`
	// FractionScan bounds how far above/below a fraction line to search for
	// numerator and denominator content.
	FractionScan int `mapstructure:"fraction_scan" yaml:"fraction_scan" json:"fraction_scan"`
	// OperatorScanRatio bounds the root/large-operator extension as a
	// fraction of the main content height.
	OperatorScanRatio float64 `mapstructure:"operator_scan_ratio" yaml:"operator_scan_ratio" json:"operator_scan_ratio"`
}

// DefaultConfig returns the default refiner configuration.
func DefaultConfig() Config {
	return Config{
		Padding:           4,
		FractionScan:      20,
		OperatorScanRatio: 0.3,
	}
}

// Refiner merges components, traces contours and expands boxes for scripts,
// fractions, roots and large operators.
type Refiner struct {
	cfg Config
}

// NewRefiner creates a Refiner with the given configuration.
func NewRefiner(cfg Config) *Refiner {
	if cfg.Padding < 2 {
		cfg.Padding = 2
	}
	if cfg.Padding > 8 {
		cfg.Padding = 8
	}
	if cfg.FractionScan <= 0 {
		cfg.FractionScan = DefaultConfig().FractionScan
	}
	if cfg.OperatorScanRatio <= 0 {
		cfg.OperatorScanRatio = DefaultConfig().OperatorScanRatio
	}
	return &Refiner{cfg: cfg}
}

// Refine produces a new boundary for the candidate; the input region is left
// untouched. mask is the full-page binary mask the region was found in.
func (rf *Refiner) Refine(r *region.Region, mask *preprocess.BinaryMask, f feature.MathFeatures) (Refined, error) {
	if r == nil || mask == nil {
		return Refined{}, errors.New("nil region or mask")
	}
	if r.Rect.Empty() {
		return Refined{}, errors.New("degenerate region rectangle")
	}

	// Union all components within the candidate: fraction bars, numerators
	// and script glyphs label separately but belong to one formula.
	rect := r.Rect
	for _, part := range region.LabelWithin(mask, r.Rect) {
		rect = rect.Union(part)
	}

	contour := traceContour(mask, rect)

	rect = rf.extendVertically(rect, mask, f)

	rect = rect.Inset(-rf.cfg.Padding)
	rect = rect.Intersect(image.Rect(0, 0, mask.Width, mask.Height))
	if rect.Empty() {
		return Refined{}, errors.New("refined boundary collapsed to empty rectangle")
	}

	perimeter := 2 * float64(rect.Dx()+rect.Dy())
	tightness := 0.0
	if perimeter > 0 {
		tightness = utils.Clamp01(float64(len(contour)) / perimeter)
	}

	return Refined{Rect: rect, Contour: contour, Tightness: tightness}, nil
}

// extendVertically grows the box for structures that commonly spill outside
// the raw component extent.
func (rf *Refiner) extendVertically(rect image.Rectangle, mask *preprocess.BinaryMask, f feature.MathFeatures) image.Rectangle {
	if f.HasSuperscript || f.HasSubscript {
		rect = scanToGap(rect, mask, rect.Dy()/2)
	}
	if f.HasFractionLine {
		rect = scanToGap(rect, mask, rf.cfg.FractionScan)
	}
	if f.HasRoot || f.HasIntegral || f.HasSummation {
		rect = scanToGap(rect, mask, int(rf.cfg.OperatorScanRatio*float64(rect.Dy())))
	}
	return rect
}

// scanToGap extends the top and bottom edges outward, row by row, until a
// fully blank row (content gap) or the scan budget is reached.
func scanToGap(rect image.Rectangle, mask *preprocess.BinaryMask, budget int) image.Rectangle {
	if budget <= 0 {
		return rect
	}
	top := rect.Min.Y
	for step := 0; step < budget && top > 0; step++ {
		if !rowHasContent(mask, top-1, rect.Min.X, rect.Max.X) {
			break
		}
		top--
	}
	bottom := rect.Max.Y
	for step := 0; step < budget && bottom < mask.Height; step++ {
		if !rowHasContent(mask, bottom, rect.Min.X, rect.Max.X) {
			break
		}
		bottom++
	}
	return image.Rect(rect.Min.X, top, rect.Max.X, bottom)
}

func rowHasContent(mask *preprocess.BinaryMask, y, x0, x1 int) bool {
	if y < 0 || y >= mask.Height {
		return false
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > mask.Width {
		x1 = mask.Width
	}
	row := mask.Pix[y*mask.Width:]
	for x := x0; x < x1; x++ {
		if row[x] != 0 {
			return true
		}
	}
	return false
}

// traceContour collects foreground pixels within rect that touch background
// through at least one 4-neighbor, in row-major order.
func traceContour(mask *preprocess.BinaryMask, rect image.Rectangle) []utils.Point {
	rect = rect.Intersect(image.Rect(0, 0, mask.Width, mask.Height))
	pts := make([]utils.Point, 0, 2*(rect.Dx()+rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if !mask.At(x, y) {
				continue
			}
			if !mask.At(x+1, y) || !mask.At(x-1, y) || !mask.At(x, y+1) || !mask.At(x, y-1) {
				pts = append(pts, utils.Point{X: float64(x), Y: float64(y)})
			}
		}
	}
	return pts
}
