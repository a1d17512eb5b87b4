package region

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/preprocess"
)

// Region is a raw candidate produced by connected-component labeling. It owns
// a copy of the binary mask and the luminance plane restricted to its
// bounding rectangle; refinement produces new regions rather than mutating
// these in place.
type Region struct {
	Rect       image.Rectangle
	Mask       []byte // Rect.Dx()*Rect.Dy() bytes, 0/1
	Luminance  []byte // same extent as Mask; may be nil when unavailable
	PixelCount int    // foreground pixels belonging to the component(s)
}

// MaskAt reports whether the region-local pixel (x, y) is foreground.
func (r *Region) MaskAt(x, y int) bool {
	w, h := r.Rect.Dx(), r.Rect.Dy()
	if x < 0 || y < 0 || x >= w || y >= h {
		return false
	}
	return r.Mask[y*w+x] != 0
}

// Width returns the region width in pixels.
func (r *Region) Width() int { return r.Rect.Dx() }

// Height returns the region height in pixels.
func (r *Region) Height() int { return r.Rect.Dy() }

// Density returns the fraction of foreground pixels within the rectangle.
func (r *Region) Density() float64 {
	area := r.Rect.Dx() * r.Rect.Dy()
	if area == 0 {
		return 0
	}
	return float64(r.PixelCount) / float64(area)
}

// crop copies the component's pixels out of the page mask and luminance plane.
func crop(mask *preprocess.BinaryMask, lum []byte, rect image.Rectangle, labels []int32, label int32) *Region {
	w, h := rect.Dx(), rect.Dy()
	r := &Region{Rect: rect, Mask: make([]byte, w*h)}
	if len(lum) == mask.Width*mask.Height {
		r.Luminance = make([]byte, w*h)
	}
	count := 0
	for y := 0; y < h; y++ {
		srcOff := (rect.Min.Y+y)*mask.Width + rect.Min.X
		for x := 0; x < w; x++ {
			if labels[srcOff+x] == label {
				r.Mask[y*w+x] = 1
				count++
			}
			if r.Luminance != nil {
				r.Luminance[y*w+x] = lum[srcOff+x]
			}
		}
	}
	r.PixelCount = count
	return r
}
