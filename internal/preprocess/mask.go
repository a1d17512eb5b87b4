package preprocess

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/mempool"
)

// BinaryMask is a 0/1 foreground mask derived from a page raster. Scale
// records the mask's resolution relative to the source page (1.0 when no
// resampling took place).
type BinaryMask struct {
	Width  int
	Height int
	Pix    []byte // one byte per pixel, 0 = background, 1 = foreground
	Scale  float64
}

// NewBinaryMask allocates a zeroed mask from the buffer pool.
func NewBinaryMask(w, h int, scale float64) *BinaryMask {
	return &BinaryMask{Width: w, Height: h, Pix: mempool.GetByte(w * h), Scale: scale}
}

// Release returns the pixel buffer to the pool. The mask must not be used
// afterwards.
func (m *BinaryMask) Release() {
	if m == nil {
		return
	}
	mempool.PutByte(m.Pix)
	m.Pix = nil
}

// At reports whether the pixel at (x, y) is foreground. Out-of-bounds
// coordinates are background.
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// ForegroundCount returns the number of foreground pixels.
func (m *BinaryMask) ForegroundCount() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// SubMask copies the given rectangle (clamped to the mask) into a new
// standalone mask slice. The returned mask owns its buffer.
func (m *BinaryMask) SubMask(r image.Rectangle) *BinaryMask {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	sub := &BinaryMask{Width: r.Dx(), Height: r.Dy(), Pix: make([]byte, r.Dx()*r.Dy()), Scale: m.Scale}
	for y := 0; y < sub.Height; y++ {
		srcOff := (r.Min.Y+y)*m.Width + r.Min.X
		copy(sub.Pix[y*sub.Width:(y+1)*sub.Width], m.Pix[srcOff:srcOff+sub.Width])
	}
	return sub
}

// Bounds returns the mask extent as an image.Rectangle.
func (m *BinaryMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}
