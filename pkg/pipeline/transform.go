// Package pipeline turns (image, label, ROI) records into training or
// evaluation samples of a fixed spatial size.
//
// A MedicalTransform adapts the record's arrays, builds the operator chain
// for its mode, and evaluates that chain once per call. Volumetric records
// are evaluated as a single batch of per-slice targets, so every slice of
// the image and of the label receives the same flip, distortion and affine
// warp.
package pipeline

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"medaug/internal/models"
	"medaug/pkg/augment"
	"medaug/pkg/metrics"
)

// MedicalTransform is a stateless record transformer. It is safe for
// concurrent use as long as each caller supplies its own random stream, or
// uses Transform which draws a fresh one per call.
type MedicalTransform struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Result is a transformed record together with the realised random outcome.
type Result struct {
	Record models.Record

	// Applied lists the operators that fired and their parameters
	Applied []augment.Applied

	// Volumetric is true when the record was synchronised across slices
	Volumetric bool
}

// New validates opts and creates a MedicalTransform.
func New(opts Options, options ...Option) (*MedicalTransform, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &MedicalTransform{
		opts:   opts,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Options returns the transform's configuration.
func (m *MedicalTransform) Options() Options {
	return m.opts
}

// Transform applies the pipeline to rec with a freshly seeded random stream.
func (m *MedicalTransform) Transform(rec models.Record) (models.Record, error) {
	res, err := m.TransformDetailed(newStream(), rec)
	if err != nil {
		return models.Record{}, err
	}
	return res.Record, nil
}

// TransformWithRand applies the pipeline to rec drawing every random decision
// from rng.
func (m *MedicalTransform) TransformWithRand(rng *rand.Rand, rec models.Record) (models.Record, error) {
	res, err := m.TransformDetailed(rng, rec)
	if err != nil {
		return models.Record{}, err
	}
	return res.Record, nil
}

// TransformDetailed is TransformWithRand that also reports which operators
// fired. The returned record holds *models.Volume image and label values, a
// copy of rec.Meta and the untouched ROI.
func (m *MedicalTransform) TransformDetailed(rng *rand.Rand, rec models.Record) (Result, error) {
	if rng == nil {
		rng = newStream()
	}
	start := time.Now()

	res, err := m.run(rng, rec)
	if err != nil {
		reason := failureReason(err)
		m.metrics.ObserveFailure(reason)
		m.logger.Warn("record rejected",
			zap.String("reason", reason),
			zap.String("mode", string(m.opts.Mode)),
			zap.Error(err))
		return Result{}, err
	}

	layout := "2d"
	if res.Volumetric {
		layout = "3d"
	}
	m.metrics.ObserveInvocation(string(m.opts.Mode), layout, time.Since(start))
	names := make([]string, len(res.Applied))
	for i, a := range res.Applied {
		m.metrics.ObserveOperator(a.Operator)
		names[i] = a.Operator + "(" + a.Params.String() + ")"
	}
	if ce := m.logger.Check(zap.DebugLevel, "record transformed"); ce != nil {
		ce.Write(
			zap.String("layout", layout),
			zap.Strings("applied", names),
			zap.Duration("elapsed", time.Since(start)))
	}
	return res, nil
}

func (m *MedicalTransform) run(rng *rand.Rand, rec models.Record) (Result, error) {
	in, err := adaptRecord(rec)
	if err != nil {
		return Result{}, err
	}

	chain, err := m.buildChain(rec.ROI)
	if err != nil {
		return Result{}, err
	}

	var (
		out     adapted
		applied []augment.Applied
	)
	volumetric := in.image.Volumetric()
	if volumetric {
		out, applied, err = synchronize(rng, chain, in)
	} else {
		out, applied, err = applyPlanar(rng, chain, in)
	}
	if err != nil {
		return Result{}, chainError(err)
	}

	result := models.Record{
		Image: out.image,
		Meta:  copyMeta(rec.Meta),
	}
	if rec.ROI != nil {
		roi := *rec.ROI
		result.ROI = &roi
	}
	if out.label != nil {
		result.Label = out.label
	}
	return Result{Record: result, Applied: applied, Volumetric: volumetric}, nil
}

// chainError maps operator failures onto pipeline errors.
func chainError(err error) error {
	switch {
	case errors.Is(err, augment.ErrEmptyCrop),
		errors.Is(err, augment.ErrShapeMismatch),
		errors.Is(err, augment.ErrNoTargets):
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	default:
		return fmt.Errorf("pipeline: chain evaluation: %w", err)
	}
}

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// newStream seeds an independent PCG stream from the runtime's
// concurrency-safe global source.
func newStream() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewStream returns a random stream seeded from seed, for reproducible runs.
func NewStream(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
