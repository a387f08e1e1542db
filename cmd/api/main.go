package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/canteen-ledger/internal/catalog"
	"github.com/josh-kwaku/canteen-ledger/internal/config"
	"github.com/josh-kwaku/canteen-ledger/internal/handler"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
	"github.com/josh-kwaku/canteen-ledger/internal/metrics"
	"github.com/josh-kwaku/canteen-ledger/internal/middleware"
	"github.com/josh-kwaku/canteen-ledger/internal/outbox"
	"github.com/josh-kwaku/canteen-ledger/internal/pricing"
	"github.com/josh-kwaku/canteen-ledger/internal/repository"
	"github.com/josh-kwaku/canteen-ledger/internal/service/idempotency"
	"github.com/josh-kwaku/canteen-ledger/internal/service/ordering"
	"github.com/josh-kwaku/canteen-ledger/internal/service/wallet"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("canteen-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = catalog.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	walletRepo := repository.NewWalletRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	menuRepo := repository.NewMenuRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	txRunner := repository.NewTxRunner(db, cfg.TxMaxAttempts, cfg.TxBackoffBase()).OnRetry(m.ObserveTxRetry)
	m.RegisterOutboxBacklog(outboxRepo.CountPending)

	menuCache := catalog.NewCache(menuRepo, redisClient, cfg.CatalogCacheTTL())
	pricer := pricing.NewService(menuCache, cfg.MaxItemQuantity)
	ledger := wallet.NewLedger(walletRepo, ledgerRepo, txRunner)
	guard := idempotency.NewGuard(idempotencyRepo, cfg.IdempotencyTTL())
	orderSvc := ordering.NewService(
		orderRepo,
		studentRepo,
		pricer,
		ledger,
		guard,
		outboxRepo,
		txRunner,
		m,
		cfg.MaxBatchOrders,
	)

	var publisher outbox.Publisher
	if cfg.KafkaEnabled() {
		publisher = outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		publisher = outbox.NewLogPublisher(logger)
		logger.Warn("KAFKA_BROKERS not set, order events are only logged")
	}
	defer publisher.Close()

	relay := outbox.NewRelay(outboxRepo, txRunner, publisher, m, logger, cfg.OutboxPollInterval(), cfg.OutboxBatchSize)
	purger := idempotency.NewPurger(guard, m, logger, cfg.IdempotencyPurgeInterval())

	bgCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(2)
	go func() { defer workers.Done(); relay.Start(bgCtx) }()
	go func() { defer workers.Done(); purger.Start(bgCtx) }()

	healthHandler := handler.NewHealthHandler(db, menuCache)
	orderHandler := handler.NewOrderHandler(orderSvc)
	walletHandler := handler.NewWalletHandler(ledger)

	authed := middleware.Auth(cfg.JWTSecret)
	keyed := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireIdempotencyKey(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/v1/orders", keyed(orderHandler.Place))
	mux.Handle("POST /api/v1/orders/weekly", keyed(orderHandler.PlaceWeekly))
	mux.Handle("POST /api/v1/orders/{id}/cancel", authed(http.HandlerFunc(orderHandler.Cancel)))
	mux.Handle("GET /api/v1/orders", authed(http.HandlerFunc(orderHandler.List)))
	mux.Handle("GET /api/v1/orders/{id}", authed(http.HandlerFunc(orderHandler.Get)))

	mux.Handle("POST /api/v1/wallet", authed(http.HandlerFunc(walletHandler.Open)))
	mux.Handle("GET /api/v1/wallet", authed(http.HandlerFunc(walletHandler.Get)))
	mux.Handle("GET /api/v1/wallet/ledger", authed(http.HandlerFunc(walletHandler.Ledger)))

	var root http.Handler = middleware.Metrics(m)(mux)
	root = middleware.Recovery(root)
	root = middleware.Logging(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	stopWorkers()
	workers.Wait()
	logger.Info("server stopped")
}

// connectDB waits for Postgres to accept connections, backing off between pings.
func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = time.Minute

	var db *sql.DB
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err != nil {
			slog.Info("waiting for database", "attempt", attempt, "error", err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("connectDB: gave up after %d attempts: %w", attempt, err)
	}
	return db, nil
}
