package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"medaug/pkg/metrics"
)

// Mode selects the operator recipe.
type Mode string

const (
	// ModeTrain applies the stochastic augmentation recipe.
	ModeTrain Mode = "train"
	// ModeEval applies only the deterministic resize and pad.
	ModeEval Mode = "eval"
)

// ParseMode converts a configuration string to a Mode. The empty string
// selects ModeTrain.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeTrain:
		return ModeTrain, nil
	case ModeEval:
		return ModeEval, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (want train or eval)", ErrInvalidConfiguration, s)
	}
}

// OutputSize is the fixed (height, width) every transformed slice ends up with.
type OutputSize struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// Square returns an n x n output size.
func Square(n int) OutputSize {
	return OutputSize{Height: n, Width: n}
}

// Max returns the longer side.
func (s OutputSize) Max() int {
	return max(s.Height, s.Width)
}

func (s OutputSize) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// Options holds the immutable configuration of a MedicalTransform.
//
// The zero value disables ROI cropping and selects train mode once
// validated. Use DefaultOptions to start from the usual settings, which
// crop to the bounding box.
type Options struct {
	// OutputSize is the spatial shape of every output slice
	OutputSize OutputSize

	// ROIErrorRange is the margin added on every side of the bounding box
	// before cropping
	ROIErrorRange int

	// Mode selects the train or eval recipe
	Mode Mode

	// UseROI requires every record to carry a bounding box and prepends a
	// crop to the chain
	UseROI bool
}

// DefaultOptions returns train-mode options with ROI cropping enabled and no
// margin.
func DefaultOptions(size OutputSize) Options {
	return Options{
		OutputSize:    size,
		ROIErrorRange: 0,
		Mode:          ModeTrain,
		UseROI:        true,
	}
}

// Validate checks the options and fills the default mode.
func (o *Options) Validate() error {
	if o.OutputSize.Height <= 0 || o.OutputSize.Width <= 0 {
		return fmt.Errorf("%w: output size %s must be positive", ErrInvalidConfiguration, o.OutputSize)
	}
	if o.ROIErrorRange < 0 {
		return fmt.Errorf("%w: roi error range %d must be non-negative", ErrInvalidConfiguration, o.ROIErrorRange)
	}
	mode, err := ParseMode(string(o.Mode))
	if err != nil {
		return err
	}
	o.Mode = mode
	return nil
}

// Option configures a MedicalTransform.
type Option func(*MedicalTransform)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *MedicalTransform) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics reports invocations to the given collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *MedicalTransform) {
		m.metrics = c
	}
}
