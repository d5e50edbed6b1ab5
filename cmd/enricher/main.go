package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/auth"
	"github.com/octobees/contact-enricher/internal/cache"
	"github.com/octobees/contact-enricher/internal/cascade"
	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/consumer"
	"github.com/octobees/contact-enricher/internal/engine"
	"github.com/octobees/contact-enricher/internal/handler"
	"github.com/octobees/contact-enricher/internal/ledger"
	"github.com/octobees/contact-enricher/internal/metrics"
	middlewarepkg "github.com/octobees/contact-enricher/internal/middleware"
	"github.com/octobees/contact-enricher/internal/observability"
	"github.com/octobees/contact-enricher/internal/provider"
	"github.com/octobees/contact-enricher/internal/router"
	"github.com/octobees/contact-enricher/internal/scoring"
	"github.com/octobees/contact-enricher/internal/service"
	"github.com/octobees/contact-enricher/internal/verification"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logger, err := configureLogger(cfg.Log)
	if err != nil {
		log.WithError(err).Fatal("invalid log configuration")
	}
	logger.WithFields(log.Fields{"version": version, "store": cfg.StoreDriver}).Info("starting contact enricher")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTel, version)
	if err != nil {
		logger.WithError(err).Fatal("failed to set up tracing")
	}

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStores(startupCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("failed to open stores")
	}
	defer st.close()

	collector := metrics.New()

	registry, err := provider.Build(cfg.Providers, provider.BuildOptions{
		Client:           &http.Client{Timeout: 15 * time.Second},
		Cooldown:         cfg.Cascade.Cooldown,
		FailureThreshold: cfg.Cascade.FailureThreshold,
		Retries:          cfg.Cascade.Retries,
		RetryBackoff:     cfg.Cascade.RetryBackoff,
		Observer:         collector,
		Logger:           logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build provider registry")
	}
	if registry.Len() == 0 {
		logger.Warn("no provider has credentials; only cached contacts can be resolved")
	}

	tracker := cascade.NewBatchTracker(cascade.Thresholds{
		MinSample:     cfg.Cascade.MinSample,
		CostOptimized: cfg.Cascade.CostOptimizedAt,
		Balanced:      cfg.Cascade.BalancedAt,
		FullCascade:   cfg.Cascade.FullCascadeAt,
	})
	credits := ledger.New(st.credits, ledger.WithLogger(logger))
	enricher := engine.New(
		cache.NewService(st.cache, cache.WithObserver(collector), cache.WithLogger(logger)),
		credits,
		cascade.NewDispatcher(registry, cascade.Config{
			TierSize:     cfg.Cascade.TierSize,
			FanOut:       cfg.Cascade.FanOut,
			MaxProviders: cfg.Cascade.MaxProvidersPerContact,
		}, cascade.WithObserver(collector), cascade.WithLogger(logger)),
		engineOptions(cfg, st, tracker, collector, logger)...,
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	enrichmentService := service.NewEnrichmentService(enricher, cfg.BatchLimit, cfg.BatchWorkers)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(logger))
	e.Use(middlewarepkg.Metrics(collector))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.BodyLimit("10M"))

	router.Register(e, cfg, jwtManager, router.Handlers{
		Health:  handler.NewHealthHandler(st.ping),
		Auth:    handler.NewAuthHandler(service.NewAuthService(cfg.APIClients, jwtManager, int64(cfg.TokenTTL.Seconds()))),
		Enrich:  handler.NewEnrichHandler(enrichmentService, cfg.BatchLimit),
		Credits: handler.NewCreditsHandler(service.NewCreditsService(credits, st.logs)),
		Jobs:    handler.NewJobsHandler(service.NewJobsService(st.contacts, tracker)),
		Cache:   handler.NewCacheHandler(service.NewReportsService(st.reports)),
		Metrics: collector.Handler(),
	})

	consumerErr := make(chan error, 1)
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		if err := startJobConsumer(ctx, cfg.Kafka, enrichmentService, consumerErr, consumerDone); err != nil {
			logger.WithError(err).Fatal("failed to start job consumer")
		}
	} else {
		close(consumerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()
	logger.WithField("port", cfg.Port).Info("http server listening")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-consumerErr:
		logger.WithError(err).Error("job consumer stopped")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("job consumer did not drain before shutdown deadline")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("flush traces failed")
	}
}

func engineOptions(cfg *config.Config, st *stores, tracker *cascade.BatchTracker, collector *metrics.Collector, logger *log.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithOutcomeStore(st.contacts),
		engine.WithTracker(tracker),
		engine.WithRecorder(collector),
		engine.WithPricing(ledger.Pricing{EmailCredits: cfg.Credits.EmailPrice, PhoneCredits: cfg.Credits.PhonePrice}),
		engine.WithScoring(scoring.Thresholds{High: cfg.Cascade.HighConfidence, Excellent: cfg.Cascade.ExcellentConfidence}),
		engine.WithLogger(logger),
	}
	if cfg.Verification.Email {
		opts = append(opts, engine.WithEmailChecker(verification.NewEmailVerifier(
			verification.WithDNSTimeout(cfg.Verification.DNSTimeout),
			verification.WithCatchAllDomains(cfg.Verification.CatchAllDomains),
		)))
	}
	if cfg.Verification.Phone {
		opts = append(opts, engine.WithPhoneChecker(verification.NewPhoneVerifier(
			cfg.Verification.DefaultRegion,
			cfg.Verification.HighValueCountries,
		)))
	}
	return opts
}

// startJobConsumer polls the job topic until ctx ends; done is closed once
// in-flight messages finished and the client is closed.
func startJobConsumer(ctx context.Context, cfg config.KafkaConfig, enrichment consumer.Enrichment, errs chan<- error, done chan<- struct{}) error {
	client, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"group.id":          cfg.GroupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return err
	}

	jobs, err := consumer.NewKafkaConsumer(client, cfg.Topic, consumer.NewJobHandler(enrichment), cfg.Workers)
	if err != nil {
		client.Close()
		return err
	}
	go func() {
		defer close(done)
		if err := jobs.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- err
		}
		if err := jobs.Close(); err != nil {
			log.WithError(err).Warn("close kafka consumer")
		}
	}()
	return nil
}

func configureLogger(cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger := log.StandardLogger()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
