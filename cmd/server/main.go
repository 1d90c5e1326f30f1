package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/loan-ledger/internal/app"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/handler"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/service"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize store
	store, closeStore, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize per-loan lock
	locker, err := app.NewLocker(cfg)
	if err != nil {
		log.Error("failed to initialize locker", slog.Any("error", err))
		os.Exit(1)
	}
	defer locker.Close()

	registry := metrics.NewRegistry()

	// Initialize service
	ledgerService := service.NewLedgerService(store, locker,
		service.WithLogger(log),
		service.WithMetrics(metrics.New(registry)),
		service.WithLockTimeout(cfg.Lock.Timeout),
	)

	checks := map[string]handler.Pinger{"store": store}
	if locker.Redis != nil {
		checks["redis"] = locker
	}

	// Setup routes
	router := handler.NewRouter(
		handler.NewLedgerHandler(ledgerService),
		handler.NewHealthHandler(cfg.Health.Timeout, checks),
		metrics.Handler(registry),
		log,
	)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("store", cfg.Store.Driver),
			slog.String("lock", cfg.Lock.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
		return
	}

	log.Info("server exited")
}
