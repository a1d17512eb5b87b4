package region

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/preprocess"
)

// Config holds region-finder options.
type Config struct {
	// MinPixels discards components below this foreground pixel count.
	MinPixels int `mapstructure:"min_pixels" yaml:"min_pixels" json:"min_pixels"`
}

// DefaultConfig returns the default region-finder configuration.
func DefaultConfig() Config {
	return Config{MinPixels: 5}
}

// Finder labels connected components in a binary mask.
type Finder struct {
	cfg Config
}

// NewFinder creates a Finder with the given configuration.
func NewFinder(cfg Config) *Finder {
	if cfg.MinPixels <= 0 {
		cfg.MinPixels = DefaultConfig().MinPixels
	}
	return &Finder{cfg: cfg}
}

// componentStats tracks the extent and size of one component during labeling.
type componentStats struct {
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// eight-connected neighbor offsets
var neighbors8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Find labels 8-connected foreground components and returns one Region per
// component at or above the noise threshold. lum may be nil.
func (f *Finder) Find(mask *preprocess.BinaryMask, lum []byte) []*Region {
	// Labeling the full page keeps the label plane page-strided for crop.
	stats, labels := labelComponents(mask, image.Rect(0, 0, mask.Width, mask.Height))
	out := make([]*Region, 0, len(stats))
	for i, st := range stats {
		if st.count < f.cfg.MinPixels {
			continue
		}
		rect := image.Rect(st.minX, st.minY, st.maxX+1, st.maxY+1)
		out = append(out, crop(mask, lum, rect, labels, int32(i+1)))
	}
	return out
}

// LabelWithin re-runs component labeling restricted to rect and returns the
// extent of every component found there, regardless of size. Used by the
// boundary refiner to union the parts of one visual formula (fraction bars,
// numerators, script glyphs) that label as separate components.
func LabelWithin(mask *preprocess.BinaryMask, rect image.Rectangle) []image.Rectangle {
	rect = rect.Intersect(image.Rect(0, 0, mask.Width, mask.Height))
	if rect.Empty() {
		return nil
	}
	stats, _ := labelComponents(mask, rect)
	out := make([]image.Rectangle, 0, len(stats))
	for _, st := range stats {
		out = append(out, image.Rect(st.minX, st.minY, st.maxX+1, st.maxY+1))
	}
	return out
}

// labelComponents flood-fills 8-connected components inside rect using an
// explicit stack so dense masks cannot exhaust goroutine stacks. The label
// plane is rect-sized and indexed relative to rect.Min, so restricted runs
// cost the rect's area rather than the page's.
func labelComponents(mask *preprocess.BinaryMask, rect image.Rectangle) ([]componentStats, []int32) {
	w := mask.Width
	rw := rect.Dx()
	labels := make([]int32, rw*rect.Dy())
	var stats []componentStats
	var next int32 = 1

	stack := make([]int, 0, 1024)

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowOff := y * w
		localRow := (y - rect.Min.Y) * rw
		for x := rect.Min.X; x < rect.Max.X; x++ {
			li := localRow + x - rect.Min.X
			if mask.Pix[rowOff+x] == 0 || labels[li] != 0 {
				continue
			}
			st := componentStats{minX: x, minY: y, maxX: x, maxY: y}
			labels[li] = next
			stack = append(stack[:0], li)

			for len(stack) > 0 {
				ci := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx := rect.Min.X + ci%rw
				cy := rect.Min.Y + ci/rw

				st.count++
				if cx < st.minX {
					st.minX = cx
				}
				if cy < st.minY {
					st.minY = cy
				}
				if cx > st.maxX {
					st.maxX = cx
				}
				if cy > st.maxY {
					st.maxY = cy
				}

				for _, d := range neighbors8 {
					nx, ny := cx+d[0], cy+d[1]
					if nx < rect.Min.X || nx >= rect.Max.X || ny < rect.Min.Y || ny >= rect.Max.Y {
						continue
					}
					if mask.Pix[ny*w+nx] == 0 {
						continue
					}
					ni := (ny-rect.Min.Y)*rw + nx - rect.Min.X
					if labels[ni] == 0 {
						labels[ni] = next
						stack = append(stack, ni)
					}
				}
			}
			stats = append(stats, st)
			next++
		}
	}
	return stats, labels
}
