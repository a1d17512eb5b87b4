package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/mathfind/internal/tiling"
	"github.com/MeKo-Tech/mathfind/internal/utils"
)

// tileJob is one tile processing unit for the worker pool.
type tileJob struct {
	tile tiling.Tile
}

// tileResult carries one tile's detections back to the collector.
type tileResult struct {
	tileIndex  int
	detections []DetectedFormula
	err        error
}

// detectTiled partitions the page and runs the pipeline per tile. Pages under
// the tiling threshold take the synchronous single-tile path.
func (d *Detector) detectTiled(ctx context.Context, page PageInput) ([]DetectedFormula, error) {
	bounds := page.Image.Bounds()
	pageW, pageH := bounds.Dx(), bounds.Dy()

	tiles := tiling.ComputeTiles(pageW, pageH, d.cfg.Tiling)
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: empty page raster", ErrPreprocessingFailed)
	}
	if len(tiles) == 1 || d.cfg.MaxWorkers == 1 {
		return d.detectSequential(ctx, page, tiles, pageW, pageH)
	}

	d.logger.Debug("tiling page", "page", page.Number,
		"width", pageW, "height", pageH, "tiles", len(tiles))

	workers := d.cfg.MaxWorkers
	if workers > len(tiles) {
		workers = len(tiles)
	}

	jobs := make(chan tileJob, len(tiles))
	results := make(chan tileResult, len(tiles))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go d.tileWorker(ctx, page, pageW, pageH, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- tileJob{tile: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	perTile := make(map[int][]DetectedFormula, len(tiles))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("tile %d: %w", res.tileIndex, res.err)
			}
			continue
		}
		perTile[res.tileIndex] = res.detections
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	// Flatten in tile scan order so merge tie-breaking is deterministic.
	var all []DetectedFormula
	for _, t := range tiles {
		all = append(all, perTile[t.Index]...)
	}
	return mergeResults(all, suppressIoU), nil
}

// detectSequential handles the single-tile page (and the one-worker
// degenerate case) without spinning up the pool.
func (d *Detector) detectSequential(
	ctx context.Context,
	page PageInput,
	tiles []tiling.Tile,
	pageW, pageH int,
) ([]DetectedFormula, error) {
	var all []DetectedFormula
	for _, t := range tiles {
		dets, err := d.processTile(ctx, page, t, pageW, pageH)
		if err != nil {
			return nil, err
		}
		all = append(all, dets...)
	}
	return mergeResults(all, suppressIoU), nil
}

// tileWorker consumes tiles from the jobs channel until it closes or the
// context is cancelled.
func (d *Detector) tileWorker(
	ctx context.Context,
	page PageInput,
	pageW, pageH int,
	jobs <-chan tileJob,
	results chan<- tileResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			dets, err := d.processTile(ctx, page, job.tile, pageW, pageH)
			select {
			case results <- tileResult{tileIndex: job.tile.Index, detections: dets, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// processTile crops the page to one tile, detects, and keeps only detections
// whose center lies in the tile's core.
func (d *Detector) processTile(
	ctx context.Context,
	page PageInput,
	tile tiling.Tile,
	pageW, pageH int,
) ([]DetectedFormula, error) {
	bounds := page.Image.Bounds()
	var img image.Image
	if tile.Rect == image.Rect(0, 0, pageW, pageH) && bounds.Min == (image.Point{}) {
		img = page.Image
	} else {
		img = utils.CropImageRect(page.Image, tile.Rect.Add(bounds.Min))
	}

	dets, err := d.detectTile(ctx, img, tile.Rect.Min, pageW, pageH, page.TextLines, tile.Index)
	if err != nil {
		return nil, err
	}

	kept := dets[:0]
	for _, f := range dets {
		if tile.InCore(f.Rect) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
