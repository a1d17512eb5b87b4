package cmd

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mathfind/internal/detect"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// toCSV renders detections as CSV rows with a header line.
func toCSV(formulas []detect.DetectedFormula) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"id", "page", "type", "x0", "y0", "x1", "y1", "confidence", "level"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, f := range formulas {
		row := []string{
			f.ID,
			strconv.Itoa(f.PageNumber),
			string(f.FormulaType),
			strconv.Itoa(f.Rect.Min.X),
			strconv.Itoa(f.Rect.Min.Y),
			strconv.Itoa(f.Rect.Max.X),
			strconv.Itoa(f.Rect.Max.Y),
			strconv.FormatFloat(f.Confidence.Overall, 'f', 4, 64),
			string(f.Confidence.Level),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return sb.String(), nil
}

// toPlainText renders detections one per line in reading order.
func toPlainText(formulas []detect.DetectedFormula) string {
	if len(formulas) == 0 {
		return "no formulas detected\n"
	}

	var sb strings.Builder
	for _, f := range formulas {
		fmt.Fprintf(&sb, "%s page=%d %s [%d,%d,%d,%d] confidence=%.2f (%s)\n",
			f.ID, f.PageNumber, f.FormulaType,
			f.Rect.Min.X, f.Rect.Min.Y, f.Rect.Max.X, f.Rect.Max.Y,
			f.Confidence.Overall, f.Confidence.Level)
	}
	return sb.String()
}
