// Package tiling splits oversized page rasters into overlapping tiles so the
// detection pipeline can process them in parallel with bounded memory.
package tiling

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/utils"
)

const (
	// Pages at or below this size are processed as a single tile.
	thresholdWidth  = 2000
	thresholdHeight = 3000

	defaultTileSize = 1000
)

// Config controls how a page is split.
type Config struct {
	TileSize int `mapstructure:"tile_size" yaml:"tile_size" json:"tile_size"`
}

// DefaultConfig returns the standard tile geometry.
func DefaultConfig() Config {
	return Config{TileSize: defaultTileSize}
}

// Tile is one rectangular slice of the page. Rect is the tile's placement in
// page coordinates, overlap margins included.
type Tile struct {
	Index int
	Rect  image.Rectangle
	// Core is the non-overlapping interior; detections whose center falls
	// outside Core belong to a neighboring tile's core and are deduplicated
	// during merging.
	Core image.Rectangle
	// Overlap is the margin added on each interior edge.
	Overlap int
}

// OverlapMargin returns the overlap for a tile size: a tenth of the tile edge
// held between 50 and 100 pixels.
func OverlapMargin(tileSize int) int {
	return utils.ClampInt(tileSize/10, 50, 100)
}

// ComputeTiles partitions a page of the given size. Pages within the
// single-tile threshold yield exactly one tile covering the whole page with
// zero overlap. Larger pages are cut into a grid of TileSize cores, each
// expanded by the overlap margin and clipped to the page.
func ComputeTiles(pageW, pageH int, cfg Config) []Tile {
	if pageW <= 0 || pageH <= 0 {
		return nil
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = defaultTileSize
	}
	full := image.Rect(0, 0, pageW, pageH)
	if pageW <= thresholdWidth && pageH <= thresholdHeight {
		return []Tile{{Index: 0, Rect: full, Core: full}}
	}

	size := cfg.TileSize
	margin := OverlapMargin(size)
	cols := (pageW + size - 1) / size
	rows := (pageH + size - 1) / size

	tiles := make([]Tile, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			core := image.Rect(col*size, row*size, (col+1)*size, (row+1)*size).Intersect(full)
			rect := core.Inset(-margin).Intersect(full)
			tiles = append(tiles, Tile{
				Index:   row*cols + col,
				Rect:    rect,
				Core:    core,
				Overlap: margin,
			})
		}
	}
	return tiles
}

// InCore reports whether a detection rect in page coordinates belongs to this
// tile: its center must fall inside the tile's core.
func (t Tile) InCore(rect image.Rectangle) bool {
	cx := (rect.Min.X + rect.Max.X) / 2
	cy := (rect.Min.Y + rect.Max.Y) / 2
	return image.Pt(cx, cy).In(t.Core)
}

// ToPage translates a rect from tile-local coordinates to page coordinates.
func (t Tile) ToPage(rect image.Rectangle) image.Rectangle {
	return rect.Add(t.Rect.Min)
}
