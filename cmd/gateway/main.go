package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/config"
	"github.com/mealstack/payment-core/internal/infrastructure/crypto"
	"github.com/mealstack/payment-core/internal/infrastructure/gateway"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence/postgres"
	"github.com/mealstack/payment-core/internal/interfaces/rest/handlers"
	"github.com/mealstack/payment-core/internal/interfaces/rest/middleware"
	"github.com/mealstack/payment-core/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment core",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	vault, err := crypto.NewVault(cfg.Vault.MasterKey)
	if err != nil {
		logger.Error("failed to initialize credential vault", "error", err)
		os.Exit(1)
	}

	transactionRepo := postgres.NewTransactionRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	webhookRepo := postgres.NewWebhookEventRepository(db)
	configRepo := postgres.NewConfigRepository(db)
	coordinator := postgres.NewTransactionCoordinator(db)

	registry := gateway.NewRegistry(configRepo, vault, cfg.Gateway.ConnTimeout, logger)

	ledger := services.NewLedger(transactionRepo, refundRepo, coordinator, logger)
	paymentService := services.NewPaymentService(ledger, transactionRepo, registry, logger)
	refundService := services.NewRefundService(ledger, transactionRepo, refundRepo, registry, logger)
	webhookService := services.NewWebhookService(ledger, transactionRepo, refundRepo, webhookRepo, configRepo, registry, logger)
	configService := services.NewConfigService(configRepo, vault, registry, logger)
	queryService := services.NewQueryService(transactionRepo, refundRepo)

	h := handlers.NewPaymentHandler(
		paymentService,
		refundService,
		webhookService,
		configService,
		queryService,
		logger,
	)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		transactionRepo,
		webhookRepo,
		registry,
		ledger,
		webhookService,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.PendingAge,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
