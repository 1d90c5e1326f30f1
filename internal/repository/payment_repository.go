package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

type paymentRepository struct {
	db sqlx.ExtContext
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, loan_id, payment_date, amount, interest_component, principal_component, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.PaymentDate,
		payment.Amount,
		payment.InterestComponent,
		payment.PrincipalComponent,
		payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment for loan %s: %w", payment.LoanID, translate(err))
	}

	return nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	query := `
		SELECT id, loan_id, payment_date, amount, interest_component, principal_component, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY payment_date, created_at
	`

	var payments []*domain.Payment
	if err := sqlx.SelectContext(ctx, r.db, &payments, query, loanID); err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", loanID, translate(err))
	}

	for _, p := range payments {
		p.PaymentDate = utils.DateOnly(p.PaymentDate)
	}
	return payments, nil
}

func (r *paymentRepository) GetTotals(ctx context.Context, loanID string) (domain.PaymentTotals, error) {
	query := `
		SELECT COUNT(*) AS count,
		       COALESCE(SUM(amount), 0) AS amount,
		       COALESCE(SUM(interest_component), 0) AS interest,
		       COALESCE(SUM(principal_component), 0) AS principal
		FROM payments
		WHERE loan_id = $1
	`

	var totals domain.PaymentTotals
	if err := sqlx.GetContext(ctx, r.db, &totals, query, loanID); err != nil {
		return domain.PaymentTotals{}, fmt.Errorf("payment totals for loan %s: %w", loanID, translate(err))
	}
	return totals, nil
}
