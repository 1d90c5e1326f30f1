package repository

import (
	"context"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan and holds its row lock until the enclosing
	// transaction ends. Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error)

	// Update writes a loan snapshot. It fails with ErrVersionConflict if the stored
	// version no longer matches loan.Version, and bumps loan.Version on success.
	Update(ctx context.Context, loan *domain.Loan) error

	// List returns loans ordered by creation time, optionally filtered by borrower.
	List(ctx context.Context, borrowerID string) ([]*domain.Loan, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByLoanID retrieves all payments for a loan ordered by payment date
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)

	// GetTotals aggregates amount, interest and principal paid for a loan
	GetTotals(ctx context.Context, loanID string) (domain.PaymentTotals, error)
}

// BorrowerRepository defines the interface for the borrower directory
type BorrowerRepository interface {
	Create(ctx context.Context, borrower *domain.Borrower) error
	GetByID(ctx context.Context, id string) (*domain.Borrower, error)
	List(ctx context.Context) ([]*domain.Borrower, error)
}

// UnitOfWork exposes repositories bound to one atomic envelope.
type UnitOfWork interface {
	Loans() LoanRepository
	Payments() PaymentRepository
}

// Transactor runs fn atomically. If fn returns an error nothing fn wrote is visible.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// Store is everything the ledger service needs from persistence.
type Store interface {
	Transactor
	Loans() LoanRepository
	Payments() PaymentRepository
	Borrowers() BorrowerRepository
	Ping(ctx context.Context) error
}
