package pipeline

import "errors"

// Pipeline errors. Record and configuration failures wrap one of them.
var (
	// ErrMalformedRecord reports an image/label pair that cannot be
	// transformed: unconvertible arrays, mismatched shapes, an invalid
	// bounding box or a crop window that misses the image.
	ErrMalformedRecord = errors.New("pipeline: malformed record")

	// ErrMissingROI reports a record without a bounding box while ROI
	// cropping is enabled.
	ErrMissingROI = errors.New("pipeline: missing region of interest")

	// ErrInvalidConfiguration reports unusable construction options.
	ErrInvalidConfiguration = errors.New("pipeline: invalid configuration")
)

// failureReason maps an error to a short label for metrics and logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingROI):
		return "missing_roi"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "internal"
	}
}
