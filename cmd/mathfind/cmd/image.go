package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/mathfind/internal/detect"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Detect formula regions in page images",
	Long: `Detect mathematical formula regions in one or more page images.

Supported formats: JPEG, PNG, BMP

Examples:
  mathfind image page.png
  mathfind image *.png --format json
  mathfind image scan.jpg --min-confidence 0.8 --output results.json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format := cfg.Output.Format
		outputFile := cfg.Output.File

		validFormats := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
		isValidFormat := false
		for _, f := range validFormats {
			if format == f {
				isValidFormat = true
				break
			}
		}
		if !isValidFormat {
			return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
		}

		opts := cfg.Detection.Filters
		if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
			return fmt.Errorf("invalid confidence threshold: %.2f (must be between 0.0 and 1.0)", opts.MinConfidence)
		}

		detector, err := detect.NewBuilder().WithConfig(cfg.ToDetectConfig()).Build()
		if err != nil {
			return fmt.Errorf("failed to build detection pipeline: %w", err)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Processing %d image(s)\n", len(args)); err != nil {
			return fmt.Errorf("failed to write to stdout: %w", err)
		}

		var outputs []string
		for i, pth := range args {
			img, err := loadImage(pth)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", pth, err)
			}

			formulas, err := detector.Detect(context.Background(), detect.PageInput{Image: img, Number: i + 1}, opts)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", pth, err)
			}

			switch format {
			case outputFormatJSON:
				obj := struct {
					File     string                   `json:"file"`
					Formulas []detect.DetectedFormula `json:"formulas"`
					Count    int                      `json:"count"`
				}{File: pth, Formulas: formulas, Count: len(formulas)}
				bts, err := json.MarshalIndent(obj, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				outputs = append(outputs, string(bts))
			case outputFormatCSV:
				s, err := toCSV(formulas)
				if err != nil {
					return fmt.Errorf("format csv failed: %w", err)
				}
				if len(args) > 1 {
					s = "# " + pth + "\n" + s
				}
				outputs = append(outputs, s)
			default:
				outputs = append(outputs, pth+":\n"+toPlainText(formulas))
			}
		}

		final := strings.Join(outputs, "\n")
		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(final), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), final); err != nil {
				return fmt.Errorf("failed to write final output: %w", err)
			}
		}
		return nil
	},
}

// loadImage decodes a page image from disk.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: CLI input path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func addDetectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Float64("min-confidence", 0.0, "minimum detection confidence (0..1)")
	cmd.Flags().Bool("include-inline", true, "include inline formulas in results")
	cmd.Flags().Bool("include-display", true, "include display formulas in results")
	cmd.Flags().Int("workers", 0, "parallel tile workers (0=auto)")
	cmd.Flags().Int("timeout", 0, "per-page detection timeout in seconds (0=none)")
	cmd.Flags().String("binarization", "otsu", "binarization method: otsu, adaptive, simple")
	cmd.Flags().Int("target-resolution", 0, "downscale pages above this dimension (0=keep)")
	cmd.Flags().Int("tile-size", 1000, "tile size for large page processing")
}

// bindDetectionFlags binds detection flags to viper configuration keys.
func bindDetectionFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"detection.filters.min_confidence", "min-confidence"},
		{"detection.filters.include_inline", "include-inline"},
		{"detection.filters.include_display", "include-display"},
		{"detection.max_workers", "workers"},
		{"detection.timeout_sec", "timeout"},
		{"detection.preprocess.binarization", "binarization"},
		{"detection.preprocess.target_resolution", "target-resolution"},
		{"detection.tiling.tile_size", "tile-size"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addDetectionFlags(imageCmd)
	bindDetectionFlags(imageCmd)
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
