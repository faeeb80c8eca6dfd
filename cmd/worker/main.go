package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/marketplace-orderflow/internal/catalog"
	"github.com/joao-fontenele/marketplace-orderflow/internal/config"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/inventory"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
	"github.com/joao-fontenele/marketplace-orderflow/internal/messaging"
	"github.com/joao-fontenele/marketplace-orderflow/internal/telemetry"
	"github.com/joao-fontenele/marketplace-orderflow/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.EmailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Setup(ctx, "marketplace-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	aggregator := inventory.NewAggregator(
		listings.NewPostgresStore(db),
		catalog.NewClient(cfg.CatalogURL, cfg.CatalogAPIKey, nil),
		cfg.StorefrontURL,
		logger,
	)
	stockHandler := worker.NewStockSyncHandler(aggregator, logger)

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	notificationHandler := worker.NewNotificationHandler(cfg.EmailServiceURL, httpClient, logger)

	stockConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicStockChanged, "stock-sync-worker", logger)
	defer func() { _ = stockConsumer.Close() }()
	orderConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderPlaced, "notification-worker", logger)
	defer func() { _ = orderConsumer.Close() }()

	logger.Info("starting marketplace worker", "brokers", cfg.KafkaBrokers)

	// Consumers share only the shutdown context. One stopping leaves the
	// other running.
	var (
		g      errgroup.Group
		failed atomic.Bool
	)
	run := func(name string, consume func(context.Context) error) {
		g.Go(func() error {
			err := consume(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				failed.Store(true)
				logger.Error("consumer stopped", "consumer", name, "error", err)
			}
			return nil
		})
	}
	run("stock-sync", func(ctx context.Context) error { return stockConsumer.Consume(ctx, stockHandler.Handle) })
	run("notification", func(ctx context.Context) error { return orderConsumer.Consume(ctx, notificationHandler.Handle) })

	_ = g.Wait()
	logger.Info("consumers stopped")
	if failed.Load() {
		exitCode = 1
	}
}
