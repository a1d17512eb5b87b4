package preprocess

import (
	"errors"
	"image"
	"log/slog"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/mathfind/internal/mempool"
)

// BinarizationMethod selects how the luminance plane is thresholded.
type BinarizationMethod string

const (
	BinarizationOtsu     BinarizationMethod = "otsu"
	BinarizationAdaptive BinarizationMethod = "adaptive"
	BinarizationSimple   BinarizationMethod = "simple"

	// simpleThreshold is the fixed luminance cutoff for the "simple" method.
	simpleThreshold = 200

	// adaptiveWindow and adaptiveOffset parameterize the local-mean threshold.
	adaptiveWindow = 15
	adaptiveOffset = 10
)

// Config holds preprocessing options.
type Config struct {
	// TargetResolution caps the long side of the working raster in pixels.
	// 0 keeps the source resolution.
	TargetResolution int                `mapstructure:"target_resolution" yaml:"target_resolution" json:"target_resolution"`
	Denoise          bool               `mapstructure:"denoise" yaml:"denoise" json:"denoise"`
	EnhanceContrast  bool               `mapstructure:"enhance_contrast" yaml:"enhance_contrast" json:"enhance_contrast"`
	Binarization     BinarizationMethod `mapstructure:"binarization" yaml:"binarization" json:"binarization"`
}

// DefaultConfig returns the default preprocessing configuration.
func DefaultConfig() Config {
	return Config{
		TargetResolution: 0,
		Denoise:          true,
		EnhanceContrast:  true,
		Binarization:     BinarizationOtsu,
	}
}

// Relaxed returns a cheaper variant of the config used for the reduced-quality
// retry after a detection timeout.
func (c Config) Relaxed(maxDim int) Config {
	out := c
	out.Denoise = false
	out.EnhanceContrast = false
	out.Binarization = BinarizationSimple
	if maxDim > 0 {
		out.TargetResolution = maxDim
	}
	return out
}

// Preprocessor converts a page raster into a binary content mask.
type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Preprocessor with the given configuration.
func New(cfg Config, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binarization == "" {
		cfg.Binarization = BinarizationOtsu
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Run produces a BinaryMask for the given page image. An all-background page
// yields an empty mask, not an error. The returned luminance plane covers the
// same (possibly downscaled) raster as the mask and is owned by the caller.
func (p *Preprocessor) Run(img image.Image) (*BinaryMask, []byte, error) {
	if img == nil {
		return nil, nil, errors.New("nil input image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, nil, errors.New("degenerate image dimensions")
	}

	scale := 1.0
	if p.cfg.TargetResolution > 0 {
		maxDim := b.Dx()
		if b.Dy() > maxDim {
			maxDim = b.Dy()
		}
		if maxDim > p.cfg.TargetResolution {
			scale = float64(p.cfg.TargetResolution) / float64(maxDim)
			img = imaging.Resize(img, int(float64(b.Dx())*scale), int(float64(b.Dy())*scale), imaging.Lanczos)
			b = img.Bounds()
		}
	}

	lum := luminancePlane(img)
	w, h := b.Dx(), b.Dy()

	if p.cfg.EnhanceContrast {
		equalizeHistogram(lum)
	}
	if p.cfg.Denoise {
		lum = medianFilter(lum, w, h)
	}

	mask := NewBinaryMask(w, h, scale)
	switch p.cfg.Binarization {
	case BinarizationAdaptive:
		binarizeAdaptive(lum, mask, adaptiveWindow, adaptiveOffset)
	case BinarizationSimple:
		binarizeFixed(lum, mask, simpleThreshold)
	case BinarizationOtsu:
		fallthrough
	default:
		t := otsuThreshold(buildHistogram(lum))
		binarizeFixed(lum, mask, t)
	}

	p.logger.Debug("preprocessed page",
		"width", w, "height", h, "scale", scale,
		"method", string(p.cfg.Binarization),
		"foreground", mask.ForegroundCount())

	return mask, lum, nil
}

// luminancePlane extracts per-pixel luminance (BT.601) as bytes.
func luminancePlane(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < w; x++ {
				o := (x + b.Min.X - rgba.Rect.Min.X) * 4
				r, g, bb := row[o], row[o+1], row[o+2]
				out[y*w+x] = byte((299*int(r) + 587*int(g) + 114*int(bb)) / 1000)
			}
		}
		return out
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*w+x] = byte((299*int(r>>8) + 587*int(g>>8) + 114*int(bb>>8)) / 1000)
		}
	}
	return out
}

// equalizeHistogram applies global histogram equalization in place.
func equalizeHistogram(lum []byte) {
	if len(lum) == 0 {
		return
	}
	hist := buildHistogram(lum)
	var cdf [256]int
	running := 0
	for i, c := range hist {
		running += c
		cdf[i] = running
	}
	// First non-zero CDF value anchors the remap.
	cdfMin := 0
	for _, v := range cdf {
		if v > 0 {
			cdfMin = v
			break
		}
	}
	denom := len(lum) - cdfMin
	if denom <= 0 {
		return
	}
	var lut [256]byte
	for i := range lut {
		lut[i] = byte(255 * (cdf[i] - cdfMin) / denom)
	}
	for i, v := range lum {
		lum[i] = lut[v]
	}
}

// medianFilter applies a 3x3 median filter via bild on a gray wrapper around
// the luminance plane.
func medianFilter(lim []byte, w, h int) []byte {
	gray := &image.Gray{Pix: lim, Stride: w, Rect: image.Rect(0, 0, w, h)}
	filtered := effect.Median(gray, 3)
	out := make([]byte, w*h)
	fb := filtered.Bounds()
	for y := 0; y < h && y < fb.Dy(); y++ {
		for x := 0; x < w && x < fb.Dx(); x++ {
			o := filtered.PixOffset(fb.Min.X+x, fb.Min.Y+y)
			out[y*w+x] = filtered.Pix[o] // R channel carries the gray value
		}
	}
	return out
}

func buildHistogram(lum []byte) [256]int {
	var hist [256]int
	for _, v := range lum {
		hist[v]++
	}
	return hist
}

// binarizeFixed marks pixels darker than threshold as foreground.
func binarizeFixed(lum []byte, mask *BinaryMask, threshold int) {
	for i, v := range lum {
		if int(v) < threshold {
			mask.Pix[i] = 1
		}
	}
}

// binarizeAdaptive thresholds each pixel against the mean of its window minus
// an offset, using a summed-area table for O(1) window sums.
func binarizeAdaptive(lum []byte, mask *BinaryMask, window, offset int) {
	w, h := mask.Width, mask.Height
	if w == 0 || h == 0 {
		return
	}
	// Integral image with one extra row/column of zeros.
	integral := mempool.GetFloat32((w + 1) * (h + 1))
	defer mempool.PutFloat32(integral)
	iw := w + 1
	for i := 0; i < iw; i++ {
		integral[i] = 0
	}
	for y := 1; y <= h; y++ {
		integral[y*iw] = 0
		rowSum := float32(0)
		for x := 1; x <= w; x++ {
			rowSum += float32(lum[(y-1)*w+(x-1)])
			integral[y*iw+x] = integral[(y-1)*iw+x] + rowSum
		}
	}
	half := window / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-half)
		y1 := min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0 := max(0, x-half)
			x1 := min(w-1, x+half)
			area := float32((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*iw+(x1+1)] - integral[y0*iw+(x1+1)] -
				integral[(y1+1)*iw+x0] + integral[y0*iw+x0]
			if float32(lum[y*w+x]) < sum/area-float32(offset) {
				mask.Pix[y*w+x] = 1
			}
		}
	}
}
