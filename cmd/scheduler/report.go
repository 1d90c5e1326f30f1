package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
)

// checkSharedStore rejects stores the scheduler cannot share with the server.
// An in-memory store here would be a separate, always empty copy.
func checkSharedStore(cfg *config.Config) error {
	if cfg.Store.Driver == config.StoreDriverMemory {
		return fmt.Errorf("STORE_DRIVER=%s is process-local; the scheduler needs %s", config.StoreDriverMemory, config.StoreDriverPostgres)
	}
	return nil
}

type portfolioSource interface {
	PortfolioSummary(ctx context.Context) (*domain.PortfolioSummary, error)
}

// portfolioReportJob logs the portfolio totals. It only reads; interest is never accrued in the background.
type portfolioReportJob struct {
	source  portfolioSource
	logger  *slog.Logger
	timeout time.Duration
}

func newPortfolioReportJob(source portfolioSource, logger *slog.Logger, timeout time.Duration) *portfolioReportJob {
	return &portfolioReportJob{source: source, logger: logger, timeout: timeout}
}

func (j *portfolioReportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	summary, err := j.source.PortfolioSummary(ctx)
	if err != nil {
		j.logger.Error("portfolio report failed", slog.Any("error", err))
		return
	}

	j.logger.Info("portfolio report",
		slog.String("total_lent", summary.TotalLent.StringFixed(2)),
		slog.String("total_repaid", summary.TotalRepaid.StringFixed(2)),
		slog.String("interest_earned", summary.InterestEarned.StringFixed(2)),
		slog.String("outstanding_principal", summary.OutstandingPrincipal.StringFixed(2)),
		slog.Int("active_loans", summary.ActiveLoans),
		slog.Int("closed_loans", summary.ClosedLoans),
		slog.Int("defaulted_loans", summary.DefaultedLoans),
	)
}
