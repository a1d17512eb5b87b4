package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathfind/internal/boundary"
	"github.com/MeKo-Tech/mathfind/internal/cache"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/detect"
	"github.com/MeKo-Tech/mathfind/internal/preprocess"
	"github.com/MeKo-Tech/mathfind/internal/region"
	"github.com/MeKo-Tech/mathfind/internal/tiling"
)

// Config represents the complete configuration for the mathfind application.
// It covers all commands (detect, pdf, serve) and loads from configuration
// files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Detection pipeline configuration
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection" json:"detection"`

	// Result cache configuration
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectionConfig contains detection pipeline settings.
type DetectionConfig struct {
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Region     region.Config     `mapstructure:"region" yaml:"region" json:"region"`
	Boundary   boundary.Config   `mapstructure:"boundary" yaml:"boundary" json:"boundary"`
	Confidence confidence.Config `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	Tiling     tiling.Config     `mapstructure:"tiling" yaml:"tiling" json:"tiling"`

	MaxWorkers int            `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	TimeoutSec int            `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	Filters    detect.Options `mapstructure:"filters" yaml:"filters" json:"filters"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Capacity int  `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	TTLHours int  `mapstructure:"ttl_hours" yaml:"ttl_hours" json:"ttl_hours"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detect.DefaultConfig()
	cch := cache.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Detection: DetectionConfig{
			Preprocess: det.Preprocess,
			Region:     det.Region,
			Boundary:   det.Boundary,
			Confidence: det.Confidence,
			Tiling:     det.Tiling,
			MaxWorkers: det.MaxWorkers,
			TimeoutSec: 0,
			Filters:    detect.DefaultOptions(),
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: cch.Capacity,
			TTLHours: int(cch.TTL / time.Hour),
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}

	validBinarization := []string{
		string(preprocess.BinarizationOtsu),
		string(preprocess.BinarizationAdaptive),
		string(preprocess.BinarizationSimple),
	}
	if b := string(c.Detection.Preprocess.Binarization); b != "" && !contains(validBinarization, b) {
		return fmt.Errorf("invalid binarization method: %s (must be one of: %s)",
			b, strings.Join(validBinarization, ", "))
	}

	if err := validateThreshold(c.Detection.Filters.MinConfidence, "detection.filters.min_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detection.Confidence.Thresholds.High, "detection.confidence.thresholds.high"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detection.Confidence.Thresholds.Medium, "detection.confidence.thresholds.medium"); err != nil {
		return err
	}
	if c.Detection.Confidence.Thresholds.Medium > c.Detection.Confidence.Thresholds.High {
		return fmt.Errorf("confidence thresholds inverted: medium %.2f > high %.2f",
			c.Detection.Confidence.Thresholds.Medium, c.Detection.Confidence.Thresholds.High)
	}

	if c.Detection.MaxWorkers <= 0 {
		return fmt.Errorf("invalid max workers: %d (must be positive)", c.Detection.MaxWorkers)
	}
	if c.Detection.Region.MinPixels < 0 {
		return fmt.Errorf("invalid min pixels: %d (must be non-negative)", c.Detection.Region.MinPixels)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("invalid cache capacity: %d (must be positive)", c.Cache.Capacity)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

// ToDetectConfig converts the config to the internal pipeline format.
func (c *Config) ToDetectConfig() detect.Config {
	return detect.Config{
		Preprocess: c.Detection.Preprocess,
		Region:     c.Detection.Region,
		Boundary:   c.Detection.Boundary,
		Confidence: c.Detection.Confidence,
		Tiling:     c.Detection.Tiling,
		MaxWorkers: c.Detection.MaxWorkers,
		Timeout:    time.Duration(c.Detection.TimeoutSec) * time.Second,
	}
}

// ToCacheConfig converts the config to the cache package format.
func (c *Config) ToCacheConfig() cache.Config {
	return cache.Config{
		Capacity: c.Cache.Capacity,
		TTL:      time.Duration(c.Cache.TTLHours) * time.Hour,
	}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
