package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore is the sqlx-backed Store. Loan rows are locked with
// SELECT ... FOR UPDATE inside WithinTx; lockTimeout bounds the wait.
type PostgresStore struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

func (s *PostgresStore) Loans() LoanRepository {
	return NewLoanRepository(s.db)
}

func (s *PostgresStore) Payments() PaymentRepository {
	return NewPaymentRepository(s.db)
}

func (s *PostgresStore) Borrowers() BorrowerRepository {
	return NewBorrowerRepository(s.db)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx executes fn within a database transaction.
// If fn returns an error the transaction is rolled back; otherwise it is committed.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}

	if s.lockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer we format ourselves.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set lock timeout: %w", translate(err))
		}
	}

	if err := fn(&pgUnitOfWork{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}

	return nil
}

type pgUnitOfWork struct {
	tx *sqlx.Tx
}

func (u *pgUnitOfWork) Loans() LoanRepository {
	return &loanRepository{db: u.tx, inTx: true}
}

func (u *pgUnitOfWork) Payments() PaymentRepository {
	return &paymentRepository{db: u.tx}
}
