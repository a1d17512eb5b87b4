package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/mathfind/internal/cache"
	"github.com/MeKo-Tech/mathfind/internal/detect"
	"github.com/MeKo-Tech/mathfind/internal/pdfsource"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Detect formula regions in PDF documents",
	Long: `Detect mathematical formula regions in the page images of one or more
PDF documents. Page results are cached so repeated runs over the same
document skip unchanged pages.

Examples:
  mathfind pdf paper.pdf
  mathfind pdf paper.pdf --pages 1-10 --format json
  mathfind pdf *.pdf --min-confidence 0.8`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format := cfg.Output.Format
		outputFile := cfg.Output.File
		pageRange, _ := cmd.Flags().GetString("pages")

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

		detector, err := detect.NewBuilder().WithConfig(cfg.ToDetectConfig()).Build()
		if err != nil {
			return fmt.Errorf("failed to build detection pipeline: %w", err)
		}

		noCache, _ := cmd.Flags().GetBool("no-cache")

		var resultCache detect.ResultCache
		if cfg.Cache.Enabled && !noCache {
			resultCache = cache.New(cfg.ToCacheConfig())
		}

		var outputs []string
		for _, pth := range args {
			pages, err := pdfsource.ExtractPages(pth, pageRange)
			if err != nil {
				return fmt.Errorf("failed to extract pages from %s: %w", pth, err)
			}
			if len(pages) == 0 {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: no page images found\n", pth); err != nil {
					return err
				}
				continue
			}

			docOpts := detect.DocumentOptions{
				Options: cfg.Detection.Filters,
				Cache:   resultCache,
				Progress: func(done, total int) {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: page %d/%d", pth, done, total)
					if done == total {
						_, _ = fmt.Fprintln(cmd.ErrOrStderr())
					}
				},
			}

			perPage, err := detector.DetectDocument(context.Background(), pages, docOpts)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", pth, err)
			}

			var flat []detect.DetectedFormula
			for _, formulas := range perPage {
				flat = append(flat, formulas...)
			}

			switch format {
			case outputFormatJSON:
				obj := struct {
					File     string                   `json:"file"`
					Pages    int                      `json:"pages"`
					Formulas []detect.DetectedFormula `json:"formulas"`
					Count    int                      `json:"count"`
				}{File: pth, Pages: len(pages), Formulas: flat, Count: len(flat)}
				bts, err := json.MarshalIndent(obj, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				outputs = append(outputs, string(bts))
			case outputFormatCSV:
				s, err := toCSV(flat)
				if err != nil {
					return fmt.Errorf("format csv failed: %w", err)
				}
				if len(args) > 1 {
					s = "# " + pth + "\n" + s
				}
				outputs = append(outputs, s)
			default:
				outputs = append(outputs, pth+":\n"+toPlainText(flat))
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

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().String("pages", "", "page range to process (e.g., 1-5 or 1,3,5)")
	pdfCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	pdfCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	pdfCmd.Flags().Float64("min-confidence", 0.0, "minimum detection confidence (0..1)")
	pdfCmd.Flags().Bool("include-inline", true, "include inline formulas in results")
	pdfCmd.Flags().Bool("include-display", true, "include display formulas in results")
	pdfCmd.Flags().Bool("no-cache", false, "disable the page result cache")

	_ = viper.BindPFlag("output.format", pdfCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("output.file", pdfCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("detection.filters.min_confidence", pdfCmd.Flags().Lookup("min-confidence"))
	_ = viper.BindPFlag("detection.filters.include_inline", pdfCmd.Flags().Lookup("include-inline"))
	_ = viper.BindPFlag("detection.filters.include_display", pdfCmd.Flags().Lookup("include-display"))
}

// GetPDFCommand returns the pdf command for testing purposes.
func GetPDFCommand() *cobra.Command {
	return pdfCmd
}
