package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medaug/internal/models"
	"medaug/pkg/config"
	"medaug/pkg/dataset"
	"medaug/pkg/metrics"
	"medaug/pkg/pipeline"
	"medaug/pkg/visualization"
)

// runner augments every sample of an input tree with a bounded worker pool.
type runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	transform *pipeline.MedicalTransform
}

// Summary counts the outcome of a run.
type Summary struct {
	Samples  int
	Written  int
	Rejected int
}

func newRunner(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*runner, error) {
	opts, err := cfg.TransformOptions()
	if err != nil {
		return nil, err
	}
	mt, err := pipeline.New(opts, pipeline.WithLogger(logger), pipeline.WithMetrics(collector))
	if err != nil {
		return nil, err
	}
	return &runner{cfg: cfg, logger: logger, transform: mt}, nil
}

// Run loads each sample once and writes cfg.Processing.Copies augmented
// versions of it. Rejected records are counted and skipped; I/O errors stop
// the run.
func (r *runner) Run(ctx context.Context, inputDir string) (Summary, error) {
	dirs, err := dataset.Discover(inputDir)
	if err != nil {
		return Summary{}, err
	}
	r.logger.Info("starting augmentation",
		zap.Int("samples", len(dirs)),
		zap.Int("copies", r.cfg.Processing.Copies),
		zap.Int("workers", r.cfg.Processing.NumWorkers),
		zap.String("mode", r.cfg.Transform.Mode))

	var written, rejected atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Processing.NumWorkers)

	for i, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			sample, err := dataset.Load(dir)
			if err != nil {
				return fmt.Errorf("failed to load sample %s: %w", dir, err)
			}

			for c := 0; c < r.cfg.Processing.Copies; c++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rng := r.stream(i, c)
				res, err := r.transform.TransformDetailed(rng, sample.Record)
				if err != nil {
					if isRecordError(err) {
						rejected.Add(1)
						r.logger.Warn("skipping sample", zap.String("sample", sample.Name), zap.Error(err))
						break
					}
					return err
				}
				if err := r.write(sample.Name, c, res); err != nil {
					return err
				}
				written.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	return Summary{
		Samples:  len(dirs),
		Written:  int(written.Load()),
		Rejected: int(rejected.Load()),
	}, err
}

// stream returns a per-(sample, copy) random stream. A zero seed yields
// fresh entropy so repeated runs differ.
func (r *runner) stream(sample, copyIdx int) *rand.Rand {
	if r.cfg.Processing.Seed == 0 {
		return nil
	}
	return pipeline.NewStream(r.cfg.Processing.Seed + uint64(sample)*1_000_003 + uint64(copyIdx))
}

func (r *runner) write(name string, copyIdx int, res pipeline.Result) error {
	img, _ := res.Record.Image.(*models.Volume)
	lbl, _ := res.Record.Label.(*models.Volume)

	viewer, err := visualization.NewViewer(img, lbl)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	dir := filepath.Join(r.cfg.Output.Dir, name)
	prefix := fmt.Sprintf("copy%02d", copyIdx)
	if err := viewer.SaveSliceSequence(dir, prefix, r.cfg.Output.SaveOverlays && lbl != nil); err != nil {
		return fmt.Errorf("failed to write previews for %s: %w", name, err)
	}

	if ce := r.logger.Check(zap.DebugLevel, "sample written"); ce != nil {
		st, _ := viewer.Stats(0)
		ce.Write(
			zap.String("sample", name),
			zap.Int("copy", copyIdx),
			zap.Int("slices", viewer.Depth()),
			zap.Int("operators", len(res.Applied)),
			zap.Float64("mean", st.Mean),
			zap.Float64("std", st.Std),
			zap.Float64("label_fraction", st.LabelFraction))
	}
	return nil
}

func isRecordError(err error) bool {
	return errors.Is(err, pipeline.ErrMalformedRecord) || errors.Is(err, pipeline.ErrMissingROI)
}
