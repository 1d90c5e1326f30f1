package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const defaultLockTimeout = 5 * time.Second

// LedgerService coordinates borrowers, loans and payments. Every write to a loan
// happens while holding that loan's lock and inside one store transaction.
type LedgerService struct {
	store       repository.Store
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*LedgerService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

// WithLockTimeout bounds how long a write waits for the per-loan lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *LedgerService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store repository.Store, locker lock.Locker, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:       store,
		locker:      locker,
		logger:      slog.Default(),
		lockTimeout: defaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBorrower adds a borrower to the directory
func (s *LedgerService) CreateBorrower(ctx context.Context, request *domain.CreateBorrowerRequest) (*domain.Borrower, error) {
	borrower, err := domain.NewBorrower(request.Name, request.Phone, request.Notes, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Borrowers().Create(ctx, borrower); err != nil {
		return nil, customError.WrapPersistenceFailure("", err)
	}
	return borrower, nil
}

func (s *LedgerService) GetBorrower(ctx context.Context, borrowerID string) (*domain.Borrower, error) {
	borrower, err := s.store.Borrowers().GetByID(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, customError.WrapBorrowerNotFound(borrowerID)
		}
		return nil, customError.WrapPersistenceFailure("", err)
	}
	return borrower, nil
}

func (s *LedgerService) ListBorrowers(ctx context.Context) ([]*domain.Borrower, error) {
	borrowers, err := s.store.Borrowers().List(ctx)
	if err != nil {
		return nil, customError.WrapPersistenceFailure("", err)
	}
	return borrowers, nil
}

// CreateLoan originates a loan for an existing borrower.
func (s *LedgerService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	frequency, err := domain.ParseInterestFrequency(request.InterestFrequency)
	if err != nil {
		return nil, customError.WrapInvalidLoanRequest(err.Error())
	}
	startDate, err := utils.ParseDate(request.StartDate)
	if err != nil {
		return nil, customError.WrapInvalidLoanRequest("start_date must be YYYY-MM-DD")
	}

	if _, err := s.GetBorrower(ctx, request.BorrowerID); err != nil {
		return nil, err
	}

	loan, err := domain.NewLoan(request.BorrowerID, request.PrincipalAmount, request.InterestRate, frequency, startDate, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Loans().Create(ctx, loan); err != nil {
		return nil, customError.WrapPersistenceFailure(loan.ID, err)
	}

	s.logger.InfoContext(ctx, "loan created",
		slog.String("loan_id", loan.ID),
		slog.String("borrower_id", loan.BorrowerID),
		slog.String("principal", loan.PrincipalAmount.StringFixed(2)),
		slog.String("frequency", string(loan.InterestFrequency)),
	)
	return loan, nil
}

func (s *LedgerService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapPersistenceFailure(loanID, err)
	}
	return loan, nil
}

// ListLoans returns all loans, or only those of borrowerID when it is set.
func (s *LedgerService) ListLoans(ctx context.Context, borrowerID string) ([]*domain.Loan, error) {
	loans, err := s.store.Loans().List(ctx, borrowerID)
	if err != nil {
		return nil, customError.WrapPersistenceFailure("", err)
	}
	return loans, nil
}

// PreviewAccrual reports what a payment dated asOf would owe in interest. Nothing is written.
func (s *LedgerService) PreviewAccrual(ctx context.Context, loanID string, asOf time.Time) (*domain.AccrualPreview, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	days := utils.DaysBetween(loan.LastInterestCalcDate, asOf)
	if days < 0 {
		days = 0
	}
	accrued := loan.AccruedAsOf(asOf)

	return &domain.AccrualPreview{
		LoanID:               loan.ID,
		AsOf:                 utils.FormatDate(asOf),
		LastInterestCalcDate: utils.FormatDate(loan.LastInterestCalcDate),
		Days:                 days,
		OutstandingPrincipal: loan.OutstandingPrincipal,
		DailyInterestRate:    loan.DailyInterestRate,
		AccruedInterest:      accrued,
		TotalDue:             loan.OutstandingPrincipal.Add(accrued),
	}, nil
}

// ApplyPayment accrues interest up to paymentDate, allocates amount interest-first
// and persists the new loan state together with the payment record.
func (s *LedgerService) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal, paymentDate time.Time) (*domain.PaymentResult, error) {
	started := time.Now()

	result, err := s.applyPayment(ctx, loanID, amount, paymentDate)
	if err != nil {
		s.metrics.ObservePayment(outcomeOf(err), time.Since(started))
		s.logger.WarnContext(ctx, "payment not applied",
			slog.String("loan_id", loanID),
			slog.String("amount", amount.String()),
			slog.String("payment_date", utils.FormatDate(paymentDate)),
			slog.String("code", customError.CodeOf(err)),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.metrics.ObservePayment(metrics.OutcomeApplied, time.Since(started))
	if result.Status == domain.LoanStatusClosed {
		s.metrics.LoanClosed()
	}
	s.logger.InfoContext(ctx, "payment applied",
		slog.String("loan_id", result.LoanID),
		slog.String("payment_id", result.PaymentID),
		slog.String("amount", result.Amount.StringFixed(2)),
		slog.String("interest", result.InterestComponent.StringFixed(2)),
		slog.String("principal", result.PrincipalComponent.StringFixed(2)),
		slog.String("outstanding", result.NewOutstandingPrincipal.StringFixed(2)),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *LedgerService) applyPayment(ctx context.Context, loanID string, amount decimal.Decimal, paymentDate time.Time) (*domain.PaymentResult, error) {
	if !amount.IsPositive() || !utils.HasCurrencyPrecision(amount) || amount.GreaterThan(domain.MaxAmount) {
		return nil, customError.WrapInvalidPaymentAmount(loanID, amount.String())
	}

	release, err := s.acquire(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *domain.PaymentResult
	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		loan, err := uow.Loans().GetByIDForUpdate(ctx, loanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return customError.WrapLoanNotFound(loanID)
			}
			return err
		}

		if err := loan.CheckPayable(paymentDate); err != nil {
			return err
		}

		allocation := domain.Allocate(loan.AccruedAsOf(paymentDate), amount)

		now := s.now()
		next, err := loan.ApplyAllocation(allocation, paymentDate, now)
		if err != nil {
			return err
		}

		if err := uow.Loans().Update(ctx, &next); err != nil {
			return err
		}

		payment := domain.NewPayment(loanID, paymentDate, amount, allocation, now)
		if err := uow.Payments().Create(ctx, payment); err != nil {
			return err
		}

		result = &domain.PaymentResult{
			PaymentID:               payment.ID,
			LoanID:                  loanID,
			PaymentDate:             utils.FormatDate(payment.PaymentDate),
			Amount:                  amount,
			AccruedInterest:         allocation.Accrued,
			InterestComponent:       allocation.InterestComponent,
			PrincipalComponent:      allocation.PrincipalComponent,
			InterestShortfall:       allocation.InterestShortfall,
			NewOutstandingPrincipal: next.OutstandingPrincipal,
			Status:                  next.Status,
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, loanID, err)
	}
	return result, nil
}

// ListPayments returns the payments of a loan ordered by payment date.
func (s *LedgerService) ListPayments(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapPersistenceFailure(loanID, err)
	}
	return payments, nil
}

// MarkDefaulted moves an active loan to defaulted. It takes the same lock as payments.
func (s *LedgerService) MarkDefaulted(ctx context.Context, loanID string) (*domain.Loan, error) {
	release, err := s.acquire(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var defaulted domain.Loan
	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		loan, err := uow.Loans().GetByIDForUpdate(ctx, loanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return customError.WrapLoanNotFound(loanID)
			}
			return err
		}

		next, err := loan.MarkDefaulted(s.now())
		if err != nil {
			return err
		}
		if err := uow.Loans().Update(ctx, &next); err != nil {
			return err
		}
		defaulted = next
		return nil
	})
	if err != nil {
		return nil, classify(ctx, loanID, err)
	}

	s.logger.InfoContext(ctx, "loan marked defaulted",
		slog.String("loan_id", loanID),
		slog.String("outstanding", defaulted.OutstandingPrincipal.StringFixed(2)),
	)
	return &defaulted, nil
}

// PortfolioSummary aggregates every loan with its payment totals.
func (s *LedgerService) PortfolioSummary(ctx context.Context) (*domain.PortfolioSummary, error) {
	loans, err := s.ListLoans(ctx, "")
	if err != nil {
		return nil, err
	}

	summary := &domain.PortfolioSummary{Positions: make([]domain.LoanPosition, 0, len(loans))}
	for _, loan := range loans {
		totals, err := s.store.Payments().GetTotals(ctx, loan.ID)
		if err != nil {
			return nil, customError.WrapPersistenceFailure(loan.ID, err)
		}
		summary.Add(domain.NewLoanPosition(loan, totals))
	}
	return summary, nil
}

func (s *LedgerService) acquire(ctx context.Context, loanID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	started := time.Now()
	release, err := s.locker.Acquire(lockCtx, loanID)
	s.metrics.ObserveLockWait(time.Since(started))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller gave up; only our own lock deadline is contention.
			return nil, customError.WrapPersistenceFailure(loanID, errors.Join(ctxErr, err))
		}
		return nil, customError.WrapConcurrencyConflict(loanID, err)
	}
	return release, nil
}

// classify maps store failures onto business errors; business errors pass through.
// Once ctx is done, driver cancellations are not contention and are never retryable.
func classify(ctx context.Context, loanID string, err error) error {
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return customError.WrapPersistenceFailure(loanID, errors.Join(ctxErr, err))
	}
	if repository.IsConflict(err) {
		return customError.WrapConcurrencyConflict(loanID, err)
	}
	return customError.WrapPersistenceFailure(loanID, err)
}

func outcomeOf(err error) string {
	switch customError.CodeOf(err) {
	case customError.ErrCodeConcurrencyConflict:
		return metrics.OutcomeConflict
	case customError.ErrCodePersistenceFailure, "":
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeRejected
	}
}
