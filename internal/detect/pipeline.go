package detect

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/mathfind/internal/boundary"
	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/feature"
	"github.com/MeKo-Tech/mathfind/internal/preprocess"
	"github.com/MeKo-Tech/mathfind/internal/region"
	"github.com/MeKo-Tech/mathfind/internal/tiling"
)

// IoU thresholds for the two merge sites. Overlapping refined boundaries
// within a tile are unioned; duplicate detections across tile seams are
// suppressed.
const (
	unionIoU    = 0.3
	suppressIoU = 0.5
)

// Config holds configuration for the detection pipeline and its stages.
type Config struct {
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Region     region.Config     `mapstructure:"region" yaml:"region" json:"region"`
	Boundary   boundary.Config   `mapstructure:"boundary" yaml:"boundary" json:"boundary"`
	Confidence confidence.Config `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	Tiling     tiling.Config     `mapstructure:"tiling" yaml:"tiling" json:"tiling"`

	// MaxWorkers bounds the tile worker pool (0 = runtime.NumCPU()).
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	// Timeout bounds one page detection (0 = unbounded). On expiry the page
	// is retried once with relaxed preprocessing at reduced resolution.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		Preprocess: preprocess.DefaultConfig(),
		Region:     region.DefaultConfig(),
		Boundary:   boundary.DefaultConfig(),
		Confidence: confidence.DefaultConfig(),
		Tiling:     tiling.DefaultConfig(),
		MaxWorkers: runtime.NumCPU(),
	}
}

// Detector runs the full per-page pipeline: preprocess, find regions, extract
// features, classify, refine boundaries, score.
type Detector struct {
	cfg       Config
	pre       *preprocess.Preprocessor
	finder    *region.Finder
	extractor *feature.Extractor
	content   *classify.Classifier
	ftype     *classify.TypeClassifier
	refiner   *boundary.Refiner
	scorer    *confidence.Scorer
	logger    *slog.Logger
}

// Builder constructs a Detector with fluent configuration.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a detector builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithTargetResolution caps the working raster's long side.
func (b *Builder) WithTargetResolution(px int) *Builder {
	if px > 0 {
		b.cfg.Preprocess.TargetResolution = px
	}
	return b
}

// WithBinarization selects the binarization method.
func (b *Builder) WithBinarization(m preprocess.BinarizationMethod) *Builder {
	if m != "" {
		b.cfg.Preprocess.Binarization = m
	}
	return b
}

// WithMaxWorkers bounds the tile worker pool.
func (b *Builder) WithMaxWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.MaxWorkers = n
	}
	return b
}

// WithTimeout bounds one page detection.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.Timeout = d
	}
	return b
}

// WithConfidenceThresholds overrides the discrete level cutoffs.
func (b *Builder) WithConfidenceThresholds(high, medium float64) *Builder {
	if high > 0 {
		b.cfg.Confidence.Thresholds.High = high
	}
	if medium > 0 {
		b.cfg.Confidence.Thresholds.Medium = medium
	}
	return b
}

// WithLogger sets the structured logger; defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build assembles the detector.
func (b *Builder) Build() (*Detector, error) {
	cfg := b.cfg
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:       cfg,
		pre:       preprocess.New(cfg.Preprocess, logger),
		finder:    region.NewFinder(cfg.Region),
		extractor: feature.NewExtractor(),
		content:   classify.NewClassifier(),
		ftype:     classify.NewTypeClassifier(),
		refiner:   boundary.NewRefiner(cfg.Boundary),
		scorer:    confidence.NewScorer(cfg.Confidence),
		logger:    logger,
	}, nil
}

// Config returns the detector's effective configuration.
func (d *Detector) Config() Config { return d.cfg }

// relaxed returns a detector variant for the timeout retry: reduced working
// resolution and the cheapest preprocessing path.
func (d *Detector) relaxed() *Detector {
	cfg := d.cfg
	cfg.Preprocess = cfg.Preprocess.Relaxed(1200)
	cp := *d
	cp.cfg = cfg
	cp.pre = preprocess.New(cfg.Preprocess, d.logger)
	return &cp
}
