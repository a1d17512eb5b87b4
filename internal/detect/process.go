package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/mathfind/internal/boundary"
	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/region"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// Detect runs formula detection on one page and returns filtered detections.
// The context bounds the whole call; the configured Timeout additionally
// bounds each attempt, with one relaxed retry before giving up with an empty
// result.
func (d *Detector) Detect(ctx context.Context, page PageInput, opts Options) ([]DetectedFormula, error) {
	if page.Image == nil {
		return nil, fmt.Errorf("%w: nil page image", ErrPreprocessingFailed)
	}

	results, err := d.detectAttempt(ctx, page)
	if err != nil && errors.Is(err, ErrDetectionTimeout) {
		d.logger.Warn("page detection timed out, retrying relaxed",
			"page", page.Number, "timeout", d.cfg.Timeout)
		results, err = d.relaxed().detectAttempt(ctx, page)
		if err != nil && errors.Is(err, ErrDetectionTimeout) {
			d.logger.Warn("relaxed retry timed out, returning empty result",
				"page", page.Number)
			return []DetectedFormula{}, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return opts.Filter(results), nil
}

// DetectUnfiltered is Detect without the caller's result filters applied;
// the cache stores these so filter changes never invalidate entries.
func (d *Detector) DetectUnfiltered(ctx context.Context, page PageInput) ([]DetectedFormula, error) {
	if page.Image == nil {
		return nil, fmt.Errorf("%w: nil page image", ErrPreprocessingFailed)
	}
	return d.detectAttempt(ctx, page)
}

func (d *Detector) detectAttempt(ctx context.Context, page PageInput) ([]DetectedFormula, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	results, err := d.detectTiled(ctx, page)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrDetectionTimeout, err)
		}
		return nil, err
	}

	// Stable IDs in page scan order.
	for i := range results {
		results[i].ID = fmt.Sprintf("p%d-f%d", page.Number, i)
		results[i].PageNumber = page.Number
	}
	return results, nil
}

// detectTile runs the synchronous pipeline on one tile image. offset places
// the tile on the page; textLines are page-coordinate hints.
func (d *Detector) detectTile(
	ctx context.Context,
	img image.Image,
	offset image.Point,
	pageW, pageH int,
	textLines []feature.TextLine,
	tileIndex int,
) ([]DetectedFormula, error) {
	mask, lum, err := d.pre.Run(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocessingFailed, err)
	}
	defer mask.Release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions := d.finder.Find(mask, lum)
	if len(regions) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fctx := d.tileContext(mask.Width, mask.Height, mask.Scale, offset, regions, textLines)

	type candidate struct {
		refined  boundary.Refined
		features feature.MathFeatures
		class    classify.Result
		index    int
	}
	cands := make([]candidate, 0, len(regions))
	formulaCount := 0

	for i, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feats, err := d.extractor.Extract(r, fctx)
		if err != nil {
			d.logger.Debug("skipping candidate", "stage", "features",
				"rect", r.Rect, "error", fmt.Errorf("%w: %v", ErrFeatureExtractionFailed, err))
			continue
		}
		class := d.content.Classify(r, feats)
		if class.Type != classify.ContentFormula {
			continue
		}
		formulaCount++
		refined, err := d.refiner.Refine(r, mask, feats)
		if err != nil {
			d.logger.Debug("skipping candidate", "stage", "boundary",
				"rect", r.Rect, "error", fmt.Errorf("%w: %v", ErrBoundaryDetectionFailed, err))
			continue
		}
		cands = append(cands, candidate{
			refined:  refined,
			features: feats,
			class:    class,
			index:    i,
		})
	}
	if len(cands) == 0 {
		return nil, nil
	}

	localDensity := utils.Clamp01(float64(formulaCount) / float64(len(regions)))
	scale := mask.Scale
	if scale <= 0 {
		scale = 1
	}

	out := make([]DetectedFormula, 0, len(cands))
	for _, c := range cands {
		workRect := c.refined.Rect
		if !confidence.PlausibleRect(workRect, mask.Width, mask.Height) {
			continue
		}
		// Page-scale rect: undo the working-resolution downscale, then
		// translate by the tile offset.
		pageRect := scaleRect(workRect, 1/scale).Add(offset)
		pageRect = pageRect.Intersect(image.Rect(0, 0, pageW, pageH))
		if pageRect.Empty() {
			continue
		}

		ft := d.ftype.Classify(pageRect, pageContext(pageW, pageH, textLines))
		score := d.scorer.Score(confidence.Input{
			Features:            c.features,
			Classification:      c.class,
			FormulaType:         ft,
			Boundary:            c.refined,
			PageWidth:           mask.Width,
			PageHeight:          mask.Height,
			LocalFormulaDensity: localDensity,
		})

		out = append(out, DetectedFormula{
			Rect:           pageRect,
			WorkRect:       workRect,
			Scale:          scale,
			ContentType:    classify.ContentFormula,
			FormulaType:    ft.Type,
			Confidence:     score,
			Features:       c.features,
			Classification: c.class,
			Contour:        c.refined.Contour,
			tileIndex:      tileIndex,
			candIndex:      c.index,
		})
	}

	return mergeWithinTile(out, unionIoU), nil
}

// tileContext builds the feature-extraction context in working (mask)
// coordinates.
func (d *Detector) tileContext(
	maskW, maskH int,
	scale float64,
	offset image.Point,
	regions []*region.Region,
	textLines []feature.TextLine,
) feature.RegionContext {
	neighbors := make([]image.Rectangle, len(regions))
	for i, r := range regions {
		neighbors[i] = r.Rect
	}
	lines := make([]feature.TextLine, 0, len(textLines))
	tileRect := image.Rect(offset.X, offset.Y,
		offset.X+int(math.Round(float64(maskW)/scaleOr1(scale))),
		offset.Y+int(math.Round(float64(maskH)/scaleOr1(scale))))
	for _, tl := range textLines {
		if !tl.Rect.Overlaps(tileRect) {
			continue
		}
		lines = append(lines, feature.TextLine{
			Rect:     scaleRect(tl.Rect.Sub(offset), scaleOr1(scale)),
			MathFont: tl.MathFont,
		})
	}
	return feature.RegionContext{
		PageWidth:  maskW,
		PageHeight: maskH,
		Neighbors:  neighbors,
		TextLines:  lines,
	}
}

// pageContext builds the formula-type classification context in page
// coordinates.
func pageContext(pageW, pageH int, textLines []feature.TextLine) feature.RegionContext {
	return feature.RegionContext{PageWidth: pageW, PageHeight: pageH, TextLines: textLines}
}

func scaleOr1(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}

func scaleRect(r image.Rectangle, f float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*f)),
		int(math.Floor(float64(r.Min.Y)*f)),
		int(math.Ceil(float64(r.Max.X)*f)),
		int(math.Ceil(float64(r.Max.Y)*f)),
	)
}
