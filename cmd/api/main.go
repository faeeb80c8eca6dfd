package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/marketplace-orderflow/internal/api"
	"github.com/joao-fontenele/marketplace-orderflow/internal/auth"
	"github.com/joao-fontenele/marketplace-orderflow/internal/catalog"
	"github.com/joao-fontenele/marketplace-orderflow/internal/config"
	"github.com/joao-fontenele/marketplace-orderflow/internal/domain"
	"github.com/joao-fontenele/marketplace-orderflow/internal/idgen"
	"github.com/joao-fontenele/marketplace-orderflow/internal/inventory"
	"github.com/joao-fontenele/marketplace-orderflow/internal/listings"
	"github.com/joao-fontenele/marketplace-orderflow/internal/memstore"
	"github.com/joao-fontenele/marketplace-orderflow/internal/messaging"
	"github.com/joao-fontenele/marketplace-orderflow/internal/orders"
	"github.com/joao-fontenele/marketplace-orderflow/internal/payment"
	"github.com/joao-fontenele/marketplace-orderflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := cfg.NewLogger()

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, "marketplace-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	deps := api.Deps{
		IDs:                   idgen.UUID{},
		Resolver:              auth.NewVerifier(cfg.JWTSecret),
		SellerMerchantAccount: cfg.SellerMerchantAccount,
		Metrics:               tel.MetricsHandler,
		Logger:                logger,
	}

	if cfg.PostgresURL != "" {
		db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		deps.Listings = listings.NewPostgresStore(db)
		deps.Orders = orders.NewPostgresRepository(db)
		deps.Health = pinger(db)
	} else {
		logger.Warn("POSTGRES_URL not set, using in-memory stores")
		deps.Listings = memstore.NewListings()
		deps.Orders = memstore.NewOrders()
	}

	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogAPIKey, nil)
	products := newProductSource(cfg, catalogClient, logger)
	deps.Products = products

	paymentClient := payment.NewClient(cfg.PaymentURL, cfg.PaymentAPIKey, cfg.PaymentMerchantAccount, nil)
	deps.Gateway = paymentClient
	deps.Methods = paymentClient

	if len(cfg.KafkaBrokers) > 0 {
		stockProducer := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicStockChanged)
		defer func() { _ = stockProducer.Close() }()
		orderProducer := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderPlaced)
		defer func() { _ = orderProducer.Close() }()

		deps.Stock = inventory.NewEventDispatcher(stockProducer, logger)
		deps.Events = orderProducer
	} else {
		logger.Warn("KAFKA_BROKERS not set, pushing stock in process")
		aggregator := inventory.NewAggregator(deps.Listings, products, cfg.StorefrontURL, logger)
		dispatcher := inventory.NewAsyncDispatcher(aggregator, logger)
		defer dispatcher.Wait()
		deps.Stock = dispatcher
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.New(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting marketplace api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newProductSource puts the redis product cache in front of the catalog
// when REDIS_ADDR is set.
func newProductSource(cfg config.Config, client *catalog.Client, logger *slog.Logger) catalog.ProductSource {
	if cfg.RedisAddr == "" {
		return client
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return catalog.NewCachedClient(client, catalog.NewRedisCache(rdb), cfg.CatalogCacheTTL, logger)
}

func pinger(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
