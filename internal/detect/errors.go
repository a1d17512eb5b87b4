package detect

import "errors"

// Sentinel errors for the detection stages. Stage implementations wrap these
// with %w so callers can classify failures with errors.Is.
var (
	ErrPreprocessingFailed     = errors.New("preprocessing failed")
	ErrFeatureExtractionFailed = errors.New("feature extraction failed")
	ErrClassificationFailed    = errors.New("classification failed")
	ErrBoundaryDetectionFailed = errors.New("boundary detection failed")
	ErrInsufficientQuality     = errors.New("insufficient image quality")
	ErrDetectionTimeout        = errors.New("detection timed out")
)
