package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mathfind/internal/preprocess"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidateOutputFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestValidateBinarization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.Preprocess.Binarization = "sauvola"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid binarization method")

	cfg.Detection.Preprocess.Binarization = preprocess.BinarizationAdaptive
	assert.NoError(t, cfg.Validate())
}

func TestValidateConfidenceThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.Confidence.Thresholds.High = 1.5
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Detection.Confidence.Thresholds.High = 0.5
	cfg.Detection.Confidence.Thresholds.Medium = 0.8
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inverted")
}

func TestValidateServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.Port = 70000
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.MaxUploadMB = -1
	require.Error(t, cfg.Validate())
}

func TestValidateWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.MaxWorkers = 0
	require.Error(t, cfg.Validate())
}

func TestToDetectConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.MaxWorkers = 3
	cfg.Detection.TimeoutSec = 42
	cfg.Detection.Preprocess.TargetResolution = 1700

	det := cfg.ToDetectConfig()
	assert.Equal(t, 3, det.MaxWorkers)
	assert.Equal(t, 42*time.Second, det.Timeout)
	assert.Equal(t, 1700, det.Preprocess.TargetResolution)
	assert.Equal(t, cfg.Detection.Confidence, det.Confidence)
}

func TestToCacheConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 8
	cfg.Cache.TTLHours = 24

	cch := cfg.ToCacheConfig()
	assert.Equal(t, 8, cch.Capacity)
	assert.Equal(t, 24*time.Hour, cch.TTL)
}
