package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/bloomwatch/internal/adapter/catalog"
	"github.com/couchcryptid/bloomwatch/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/bloomwatch/internal/adapter/kafka"
	"github.com/couchcryptid/bloomwatch/internal/adapter/synthetic"
	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/config"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/couchcryptid/bloomwatch/internal/pipeline"
	"github.com/couchcryptid/bloomwatch/internal/scanner"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// alwaysReady is the readiness check when the Kafka pipeline is disabled and
// only the API is served.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Series source: the HTTP catalog when configured, otherwise synthetic demo data.
	var fetcher domain.SeriesFetcher
	if cfg.CatalogURL != "" {
		client := catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, metrics, logger)
		fetcher = catalog.NewCachedFetcher(client, cfg.CatalogCacheSize, metrics)
		logger.Info("satellite catalog enabled", "url", cfg.CatalogURL, "cache_size", cfg.CatalogCacheSize, "timeout", cfg.CatalogTimeout)
	} else {
		fetcher = synthetic.New()
		logger.Warn("no satellite catalog configured, serving synthetic data")
	}

	detector := domain.NewDetector(domain.DetectorConfig{Threshold: cfg.BloomThreshold})
	predictor := domain.NewPredictor(domain.DefaultPredictorConfig())
	svc := analysis.NewService(fetcher, detector, predictor, metrics, logger)
	scan := scanner.New(svc, scanner.Config{
		Workers:      cfg.ScanWorkers,
		PointTimeout: cfg.ScanPointTimeout,
		MaxPoints:    cfg.ScanMaxPoints,
	}, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(detector, logger, metrics)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, svc, scan, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
