package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/loan-ledger/internal/app"
	"github.com/segyhp/loan-ledger/internal/config"
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
	log.Info("starting ledger scheduler")

	if err := checkSharedStore(cfg); err != nil {
		log.Error("invalid scheduler configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, closeStore, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	locker, err := app.NewLocker(cfg)
	if err != nil {
		log.Error("failed to initialize locker", slog.Any("error", err))
		os.Exit(1)
	}
	defer locker.Close()

	ledgerService := service.NewLedgerService(store, locker, service.WithLogger(log))

	// Initialize cron scheduler
	c := cron.New(
		cron.WithLocation(cfg.SchedulerLocation()),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	// Schedule tasks
	if _, err := c.AddJob(cfg.Scheduler.Spec, newPortfolioReportJob(ledgerService, log, time.Minute)); err != nil {
		log.Error("error scheduling portfolio report job", slog.Any("error", err))
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	log.Info("scheduler started", slog.String("spec", cfg.Scheduler.Spec), slog.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}
