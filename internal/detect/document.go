package detect

import (
	"context"
	"encoding/binary"
	"image"

	"github.com/cespare/xxhash/v2"
)

// PageKey identifies one page's unfiltered detection result.
type PageKey struct {
	PageNumber        int
	ContentHash       uint64
	ConfigFingerprint uint64
}

// ResultCache stores unfiltered per-page results; the caller's filters
// re-apply on every hit so filter changes never invalidate entries.
type ResultCache interface {
	Get(key PageKey) ([]DetectedFormula, bool)
	Add(key PageKey, results []DetectedFormula)
}

// ProgressFunc reports multi-page progress after each completed page.
type ProgressFunc func(done, total int)

// DocumentOptions extends per-call options for multi-page runs.
type DocumentOptions struct {
	Options
	Progress ProgressFunc
	Cache    ResultCache
}

// DetectDocument processes pages sequentially, one result slice per page.
// Page buffers are dropped as soon as their page completes. A page that
// exhausts its timeout (including the relaxed retry) contributes an empty
// slice; other page errors abort the run.
func (d *Detector) DetectDocument(
	ctx context.Context,
	pages []PageInput,
	opts DocumentOptions,
) ([][]DetectedFormula, error) {
	out := make([][]DetectedFormula, len(pages))
	fp := d.cfg.Fingerprint()

	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := pages[i]

		var key PageKey
		cached := false
		var results []DetectedFormula
		if opts.Cache != nil {
			key = PageKey{
				PageNumber:        page.Number,
				ContentHash:       HashPage(page.Image),
				ConfigFingerprint: fp,
			}
			results, cached = opts.Cache.Get(key)
			if cached {
				d.logger.Debug("cache hit", "page", page.Number)
			}
		}
		if !cached {
			var err error
			results, err = d.Detect(ctx, page, DefaultOptions())
			if err != nil {
				return nil, err
			}
			if opts.Cache != nil {
				opts.Cache.Add(key, results)
			}
		}

		out[i] = opts.Filter(results)
		pages[i].Image = nil
		if opts.Progress != nil {
			opts.Progress(i+1, len(pages))
		}
	}
	return out, nil
}

// HashPage computes a sampled content hash of a page raster. RGBA-backed
// images hash every eighth pixel row directly; other image types hash a
// 64x64 sample grid.
func HashPage(img image.Image) uint64 {
	if img == nil {
		return 0
	}
	bounds := img.Bounds()
	h := xxhash.New()

	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[0:], uint64(int64(bounds.Dx())))
	binary.LittleEndian.PutUint64(dims[8:], uint64(int64(bounds.Dy())))
	_, _ = h.Write(dims[:])
	if bounds.Empty() {
		return h.Sum64()
	}

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < rgba.Rect.Dy(); y += 8 {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+rgba.Rect.Dx()*4]
			_, _ = h.Write(row)
		}
		return h.Sum64()
	}

	var px [8]byte
	for sy := 0; sy < 64; sy++ {
		for sx := 0; sx < 64; sx++ {
			x := bounds.Min.X + sx*bounds.Dx()/64
			y := bounds.Min.Y + sy*bounds.Dy()/64
			r, g, b, a := img.At(x, y).RGBA()
			binary.LittleEndian.PutUint16(px[0:], uint16(r))
			binary.LittleEndian.PutUint16(px[2:], uint16(g))
			binary.LittleEndian.PutUint16(px[4:], uint16(b))
			binary.LittleEndian.PutUint16(px[6:], uint16(a))
			_, _ = h.Write(px[:])
		}
	}
	return h.Sum64()
}
