package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "mathfind"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MATHFIND"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader over a dedicated viper instance (tests).
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/mathfind")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "mathfind"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "mathfind"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("detection.preprocess.target_resolution", defaults.Detection.Preprocess.TargetResolution)
	l.v.SetDefault("detection.preprocess.denoise", defaults.Detection.Preprocess.Denoise)
	l.v.SetDefault("detection.preprocess.enhance_contrast", defaults.Detection.Preprocess.EnhanceContrast)
	l.v.SetDefault("detection.preprocess.binarization", string(defaults.Detection.Preprocess.Binarization))

	l.v.SetDefault("detection.region.min_pixels", defaults.Detection.Region.MinPixels)

	l.v.SetDefault("detection.boundary.padding", defaults.Detection.Boundary.Padding)
	l.v.SetDefault("detection.boundary.fraction_scan", defaults.Detection.Boundary.FractionScan)
	l.v.SetDefault("detection.boundary.operator_scan_ratio", defaults.Detection.Boundary.OperatorScanRatio)

	l.v.SetDefault("detection.confidence.weights.feature", defaults.Detection.Confidence.Weights.Feature)
	l.v.SetDefault("detection.confidence.weights.structure", defaults.Detection.Confidence.Weights.Structure)
	l.v.SetDefault("detection.confidence.weights.context", defaults.Detection.Confidence.Weights.Context)
	l.v.SetDefault("detection.confidence.weights.boundary", defaults.Detection.Confidence.Weights.Boundary)
	l.v.SetDefault("detection.confidence.thresholds.high", defaults.Detection.Confidence.Thresholds.High)
	l.v.SetDefault("detection.confidence.thresholds.medium", defaults.Detection.Confidence.Thresholds.Medium)

	l.v.SetDefault("detection.tiling.tile_size", defaults.Detection.Tiling.TileSize)
	l.v.SetDefault("detection.max_workers", defaults.Detection.MaxWorkers)
	l.v.SetDefault("detection.timeout_sec", defaults.Detection.TimeoutSec)
	l.v.SetDefault("detection.filters.min_confidence", defaults.Detection.Filters.MinConfidence)
	l.v.SetDefault("detection.filters.include_inline", defaults.Detection.Filters.IncludeInline)
	l.v.SetDefault("detection.filters.include_display", defaults.Detection.Filters.IncludeDisplay)

	l.v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	l.v.SetDefault("cache.capacity", defaults.Cache.Capacity)
	l.v.SetDefault("cache.ttl_hours", defaults.Cache.TTLHours)

	l.v.SetDefault("output.format", defaults.Output.Format)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = "mathfind.yaml"
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "mathfind"))
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "mathfind"))
	}
	paths = append(paths, "/etc/mathfind")

	return paths
}
