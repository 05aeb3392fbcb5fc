package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-risk-engine/internal/adapter/gdacs"
	httpadapter "github.com/couchcryptid/climate-risk-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-risk-engine/internal/adapter/kafka"
	"github.com/couchcryptid/climate-risk-engine/internal/adapter/openmeteo"
	"github.com/couchcryptid/climate-risk-engine/internal/adapter/reliefweb"
	"github.com/couchcryptid/climate-risk-engine/internal/alerts"
	"github.com/couchcryptid/climate-risk-engine/internal/config"
	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/model"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
	"github.com/couchcryptid/climate-risk-engine/internal/pipeline"
	"github.com/couchcryptid/climate-risk-engine/internal/risk"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Flood classifier. A missing or unreadable artifact selects the fallback rule,
	// but an artifact that needs features we never extract is a deployment error.
	artifact := model.LoadOrFallback(cfg.ModelPath, logger)
	if artifact != nil {
		if err := artifact.CheckSchema(domain.FeatureNames); err != nil {
			logger.Error("flood model incompatible with feature extractor", "path", cfg.ModelPath, "error", err)
			os.Exit(1)
		}
		metrics.ModelLoaded.Set(1)
	}
	estimator := model.NewEstimator(artifact)

	feeds := []domain.HazardFeed{
		reliefweb.NewClient(cfg.ReliefWebAppName, cfg.FeedTimeout, logger),
		gdacs.NewClient(cfg.FeedTimeout, logger),
	}
	aggregator := alerts.NewAggregator(feeds, clock, cfg.FeedTimeout, logger, metrics)
	engine := risk.NewEngine(estimator, aggregator, logger, metrics)

	weather := openmeteo.NewClient(cfg.WeatherTimeout, metrics, logger)
	geocoder := openmeteo.NewOverrideGeocoder(
		openmeteo.NewCachedGeocoder(weather, cfg.GeocodeCacheSize, metrics),
		metrics,
	)
	assessor := risk.NewAssessor(geocoder, weather, engine, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready httpadapter.ReadinessFunc = func(context.Context) error { return nil }

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(assessor, clock)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p.CheckReadiness

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("batch pipeline enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"batch_size", cfg.BatchSize,
		)
	} else {
		logger.Info("batch pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, assessor, ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("climate risk engine started",
		"model_loaded", estimator.ModelLoaded(),
		"feeds", len(feeds),
	)

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
