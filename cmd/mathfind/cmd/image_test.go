package cmd

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mathfind/internal/classify"
	"github.com/MeKo-Tech/mathfind/internal/confidence"
	"github.com/MeKo-Tech/mathfind/internal/detect"
)

func TestImageCommand(t *testing.T) {
	assert.NotNil(t, imageCmd)
	assert.True(t, strings.HasPrefix(imageCmd.Use, "image"))
	assert.NotEmpty(t, imageCmd.Short)
	assert.NotEmpty(t, imageCmd.Long)
}

func TestImageCommandFlags(t *testing.T) {
	flags := imageCmd.Flags()

	expectedFlags := []string{
		"format", "output", "min-confidence", "include-inline",
		"include-display", "workers", "timeout", "binarization", "tile-size",
	}
	for _, flagName := range expectedFlags {
		assert.NotNil(t, flags.Lookup(flagName), "Expected flag '%s' not found", flagName)
	}
}

func TestImageCommandWithoutFile(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"image"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files provided")
}

func TestLoadImageMissingFile(t *testing.T) {
	_, err := loadImage("/nonexistent/page.png")
	require.Error(t, err)
}

func TestPlainTextFormatter(t *testing.T) {
	assert.Contains(t, toPlainText(nil), "no formulas detected")

	formulas := []detect.DetectedFormula{
		{
			ID:          "p1-f0",
			PageNumber:  1,
			Rect:        image.Rect(10, 20, 110, 50),
			ContentType: classify.ContentFormula,
			FormulaType: classify.FormulaDisplay,
			Confidence:  confidence.Score{Overall: 0.9, Level: confidence.LevelHigh},
		},
	}

	out := toPlainText(formulas)
	assert.Contains(t, out, "p1-f0")
	assert.Contains(t, out, "[10,20,110,50]")
	assert.Contains(t, out, "confidence=0.90")
	assert.Contains(t, out, "high")
}
