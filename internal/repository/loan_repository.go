package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const loanColumns = `id, borrower_id, principal_amount, outstanding_principal, interest_rate_input,
		interest_frequency, daily_interest_rate, start_date, last_interest_calc_date,
		status, version, created_at, updated_at`

type loanRepository struct {
	db   sqlx.ExtContext
	inTx bool
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.BorrowerID,
		loan.PrincipalAmount,
		loan.OutstandingPrincipal,
		loan.InterestRateInput,
		loan.InterestFrequency,
		loan.DailyInterestRate,
		loan.StartDate,
		loan.LastInterestCalcDate,
		loan.Status,
		loan.Version,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loan %s: %w", loan.ID, translate(err))
	}

	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	if !r.inTx {
		return r.GetByID(ctx, id)
	}
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *loanRepository) getOne(ctx context.Context, query, id string) (*domain.Loan, error) {
	var loan domain.Loan
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		err = translate(err)
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get loan %s: %w", id, err)
	}

	normalizeLoan(&loan)
	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET outstanding_principal = $2, last_interest_calc_date = $3, status = $4,
		    version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $6
	`

	res, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.OutstandingPrincipal,
		loan.LastInterestCalcDate,
		loan.Status,
		loan.UpdatedAt,
		loan.Version,
	)
	if err != nil {
		return fmt.Errorf("update loan %s: %w", loan.ID, translate(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan %s: %w", loan.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	loan.Version++
	return nil
}

func (r *loanRepository) List(ctx context.Context, borrowerID string) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE ($1 = '' OR borrower_id::text = $1)
		ORDER BY created_at, id
	`

	var loans []*domain.Loan
	if err := sqlx.SelectContext(ctx, r.db, &loans, query, borrowerID); err != nil {
		return nil, fmt.Errorf("list loans: %w", translate(err))
	}

	for _, l := range loans {
		normalizeLoan(l)
	}
	return loans, nil
}

// normalizeLoan drops the driver's zone from DATE columns.
func normalizeLoan(l *domain.Loan) {
	l.StartDate = utils.DateOnly(l.StartDate)
	l.LastInterestCalcDate = utils.DateOnly(l.LastInterestCalcDate)
}
