// Package cache holds unfiltered per-page detection results keyed by page
// number, raster content hash and detector configuration fingerprint. Entries
// outlive filter changes: callers re-apply their current filters on every
// hit.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MeKo-Tech/mathfind/internal/detect"
)

const (
	defaultCapacity = 20
	defaultTTL      = 72 * time.Hour
)

// Config holds cache sizing options.
type Config struct {
	Capacity int           `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// DefaultConfig returns the standard cache sizing.
func DefaultConfig() Config {
	return Config{Capacity: defaultCapacity, TTL: defaultTTL}
}

// Cache is a TTL-bounded LRU of page results. The underlying store runs its
// own expiry sweep independently of detection calls. Safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[detect.PageKey, []detect.DetectedFormula]
}

// New creates a cache; zero config fields fall back to defaults.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Cache{
		lru: expirable.NewLRU[detect.PageKey, []detect.DetectedFormula](cfg.Capacity, nil, cfg.TTL),
	}
}

// Get returns the stored unfiltered results for a key. The returned slice is
// a copy; callers may filter and reorder it freely.
func (c *Cache) Get(key detect.PageKey) ([]detect.DetectedFormula, bool) {
	stored, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]detect.DetectedFormula, len(stored))
	copy(out, stored)
	return out, true
}

// Add stores a page's unfiltered results, copying the slice so later caller
// mutations cannot reach the cached entry.
func (c *Cache) Add(key detect.PageKey, results []detect.DetectedFormula) {
	stored := make([]detect.DetectedFormula, len(results))
	copy(stored, results)
	c.lru.Add(key, stored)
}

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops all entries.
func (c *Cache) Purge() { c.lru.Purge() }
