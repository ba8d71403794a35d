// Package main runs the two-phase catalog crawl.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/api"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/gate"
	runid "github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
	"github.com/JakeFAU/catalog-crawler/internal/orchestrator"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
	"github.com/JakeFAU/catalog-crawler/internal/progress/sinks"
	"github.com/JakeFAU/catalog-crawler/internal/store"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
)

const serviceName = "catalog-crawler"

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging (per-attempt fetch traces)")
	phase := flag.String("phase", "all", "Phases to run: all, previews or details")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	mode, err := orchestrator.ParseMode(*phase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -phase: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, mode, logger)
	stop()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg config.Config, mode orchestrator.Mode, logger *zap.Logger) error {
	runID, err := runid.NewRunID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID.String()))
	logger.Info("crawl starting",
		zap.String("mode", string(mode)),
		zap.String("base_url", cfg.Catalog.BaseURL),
		zap.Int("pages", cfg.Catalog.Pages),
		zap.Int("concurrency", cfg.Crawler.Concurrency))

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	phases := store.NewMemoryProgress()
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress"), cfg.Crawler.ProgressSteps), promSink, phases)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		progressAPI := api.NewProgressHandler(phases, logger.Named("api"))
		srv, err := metrics.NewServer(reg, logger.Named("metrics"), progressAPI.Routes)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		stopMetrics := serveInBackground(ctx, logger, func(ctx context.Context) error {
			return srv.Serve(ctx, cfg.Metrics.Addr)
		})
		defer stopMetrics()
	}

	blobs, closeBlobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeBlobs()

	gateOpts := []gate.Option{gate.WithLogger(logger.Named("gate")), gate.WithRunID(runID)}
	if cfg.DB.DSN != "" {
		records, err := newRecordStore(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer records.Close()
		gateOpts = append(gateOpts, gate.WithRecordStore(records))
	}
	if cfg.PubSub.TopicName != "" {
		pub, closePub, err := newPublisher(ctx, cfg.PubSub, logger.Named("publisher"))
		if err != nil {
			return err
		}
		defer closePub()
		gateOpts = append(gateOpts, gate.WithPublisher(pub))
	}
	g, err := gate.New(blobs, gate.Config{
		PreviewsPath:            cfg.Storage.PreviewsPath,
		DetailsPath:             cfg.Storage.DetailsPath,
		ExpectedPreviews:        cfg.Catalog.ExpectedPreviews,
		ExpectedDetails:         cfg.Catalog.ExpectedDetails,
		RequireCompletePreviews: cfg.Crawler.RequireCompletePreviews,
		Topic:                   cfg.PubSub.TopicName,
	}, gateOpts...)
	if err != nil {
		return fmt.Errorf("gate: %w", err)
	}

	extractor, err := extract.New(cfg.Schema.ExtractSchema(), cfg.Catalog.BaseURL, cfg.Catalog.PageSize)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	deps, err := newDeps(cfg, logger)
	if err != nil {
		return err
	}
	deps.Extractor = extractor
	deps.Normalizer = normalize.New(cfg.Schema.LabelTable())
	deps.Gate = g
	deps.Emitter = hub
	deps.RunID = runID

	listingMin, listingMax := cfg.Crawler.ListingDelay()
	detailMin, detailMax := cfg.Crawler.DetailDelay()
	crawler, err := orchestrator.New(orchestrator.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		ListingPattern: cfg.Catalog.ListingPattern,
		Pages:          cfg.Catalog.Pages,
		Concurrency:    cfg.Crawler.Concurrency,
		ListingDelay:   orchestrator.DelayRange{Min: listingMin, Max: listingMax},
		DetailDelay:    orchestrator.DelayRange{Min: detailMin, Max: detailMax},
	}, deps)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	if err := crawler.Run(ctx, mode); err != nil {
		switch {
		case errors.Is(err, gate.ErrIncomplete):
			logger.Warn("details phase skipped: preview collection incomplete", zap.Error(err))
		case errors.Is(err, context.Canceled):
			logger.Warn("crawl interrupted", zap.Error(err))
		default:
			logger.Error("crawl failed", zap.Error(err))
		}
		return err
	}
	logger.Info("crawl finished")
	return nil
}

// serveInBackground runs serve until the returned stop func is called or ctx
// ends. stop blocks until serve has returned, so graceful shutdown completes
// before the process exits.
func serveInBackground(ctx context.Context, logger *zap.Logger, serve func(context.Context) error) func() {
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := serve(serveCtx); err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, gate.ErrIncomplete):
		return 3
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
