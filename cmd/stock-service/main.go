package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/api"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/application"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/config"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/db"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/memory"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/messaging"
	outboxinfra "github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/outbox"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/redisstore"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/logging"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger("stock-service", cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting stock service",
		zap.String("port", cfg.HttpPort),
		zap.String("store_backend", cfg.StoreBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores and repositories. The ledger and outbox always live in
	// Postgres except in pure-memory mode; the stock counters can be held
	// in Postgres, Redis or memory.
	var (
		stockStore domain.StockStore
		ledgerRepo domain.LedgerRepository
		outboxRepo domain.OutboxRepository
	)

	switch cfg.StoreBackend {
	case "memory":
		stockStore = memory.NewStockStore()
		ledgerRepo = memory.NewLedgerRepository()
		outboxRepo = memory.NewOutboxRepository()
	case "redis", "postgres":
		dbConn, err := sql.Open("pgx", cfg.PgDsn)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer dbConn.Close()

		if err := dbConn.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}

		ledgerRepo = db.NewPgLedgerRepository(dbConn)
		outboxRepo = db.NewPgOutboxRepository(dbConn)

		if cfg.StoreBackend == "redis" {
			client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Fatal("failed to ping redis", zap.Error(err))
			}
			stockStore = redisstore.NewStockStore(client)
		} else {
			stockStore = db.NewPgStockStore(dbConn)
		}
	default:
		logger.Fatal("unknown STORE_BACKEND", zap.String("value", cfg.StoreBackend))
	}

	metrics := observability.New("rupomoti")

	// Event buses
	buses := messaging.NewEventBusPair(cfg.RabbitUri, "stock.orders-events.v1")
	catalogBus := messaging.NewCatalogEventBus(cfg.RabbitUri, "stock.catalog-events.v1")

	// Outbox writer + dispatcher + scheduler
	outboxWriter := application.NewOutboxWriter(outboxRepo)
	dispatcher := outboxinfra.NewDispatcher(
		outboxRepo,
		buses.Producer,
		logger,
		cfg.OutboxMaxRetry,
		cfg.OutboxBatchSize,
	)
	scheduler := outboxinfra.NewScheduler(dispatcher, logger, cfg.OutboxIntervalSec)
	scheduler.Start(ctx)

	// Application services
	adjustments := application.NewAdjustmentService(stockStore, ledgerRepo, outboxWriter, metrics, logger)
	coordinator := application.NewReservationCoordinator(
		stockStore, adjustments, ledgerRepo, outboxWriter, metrics, logger,
		time.Duration(cfg.ReserveTimeoutMs)*time.Millisecond,
	)

	sweeper := application.NewAlertSweeper(
		stockStore, outboxWriter, metrics, logger,
		time.Duration(cfg.SweepIntervalSec)*time.Second,
	)
	sweeper.Start(ctx)

	// Order event handlers
	orderPlacedHandler := application.NewOrderPlacedHandler(coordinator, logger)
	orderCancelledHandler := application.NewOrderCancelledHandler(coordinator, logger)
	orderReturnedHandler := application.NewOrderReturnedHandler(coordinator, logger)

	// Catalog event handler
	productCreatedHandler := application.NewProductCreatedHandler(stockStore, adjustments, logger)

	// Subscriptions
	if err := messaging.RegisterOrderSubscriptions(
		ctx,
		buses.OrdersConsumer,
		logger,
		orderPlacedHandler,
		orderCancelledHandler,
		orderReturnedHandler,
	); err != nil {
		logger.Fatal("failed to start orders subscriptions", zap.Error(err))
	}

	if err := messaging.RegisterCatalogSubscriptions(
		ctx,
		catalogBus,
		logger,
		productCreatedHandler,
	); err != nil {
		logger.Fatal("failed to start catalog subscriptions", zap.Error(err))
	}

	// HTTP API
	mux := http.NewServeMux()
	apiServer := api.NewServer(cfg, stockStore, ledgerRepo, adjustments, logger)
	apiServer.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.HttpPort,
		Handler: mux,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down stock service", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
}
