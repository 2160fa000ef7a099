package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"medaug/pkg/config"
	"medaug/pkg/logging"
	"medaug/pkg/metrics"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this path and exit")
	inputDir := flag.String("input", "", "Directory of samples, or a single sample directory")
	outputDir := flag.String("output", "", "Directory for augmented previews")
	mode := flag.String("mode", "", "Recipe: train or eval")
	size := flag.Int("size", 0, "Square output size in pixels")
	copies := flag.Int("copies", 0, "Augmented copies per sample")
	workers := flag.Int("workers", 0, "Samples augmented concurrently (default: all cores)")
	seed := flag.Uint64("seed", 0, "Seed for reproducible runs (0: random)")
	noROI := flag.Bool("no-roi", false, "Skip ROI cropping")
	roiMargin := flag.Int("roi-margin", -1, "Pixels added around each bounding box")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the file and environment
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *mode != "" {
		cfg.Transform.Mode = *mode
	}
	if *size > 0 {
		cfg.Transform.OutputSize = *size
		cfg.Transform.OutputHeight, cfg.Transform.OutputWidth = 0, 0
	}
	if *copies > 0 {
		cfg.Processing.Copies = *copies
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *seed != 0 {
		cfg.Processing.Seed = *seed
	}
	if *noROI {
		cfg.Transform.UseROI = false
	}
	if *roiMargin >= 0 {
		cfg.Transform.ROIErrorRange = *roiMargin
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	r, err := newRunner(cfg, logger, collector)
	if err != nil {
		logger.Fatal("failed to build transform", zap.Error(err))
	}

	startTime := time.Now()
	summary, err := r.Run(ctx, *inputDir)
	if err != nil {
		logger.Error("augmentation failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("augmentation finished",
		zap.Int("samples", summary.Samples),
		zap.Int("written", summary.Written),
		zap.Int("rejected", summary.Rejected),
		zap.String("output", cfg.Output.Dir),
		zap.Duration("elapsed", time.Since(startTime)))

	if summary.Rejected > 0 {
		os.Exit(2)
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
