package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
)

type borrowerRepository struct {
	db sqlx.ExtContext
}

func NewBorrowerRepository(db *sqlx.DB) BorrowerRepository {
	return &borrowerRepository{db: db}
}

func (r *borrowerRepository) Create(ctx context.Context, b *domain.Borrower) error {
	query := `
		INSERT INTO borrowers (id, name, phone, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, b.ID, b.Name, b.Phone, b.Notes, b.CreatedAt); err != nil {
		return fmt.Errorf("insert borrower: %w", translate(err))
	}
	return nil
}

func (r *borrowerRepository) GetByID(ctx context.Context, id string) (*domain.Borrower, error) {
	query := `SELECT id, name, phone, notes, created_at FROM borrowers WHERE id = $1`

	var b domain.Borrower
	if err := sqlx.GetContext(ctx, r.db, &b, query, id); err != nil {
		err = translate(err)
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get borrower %s: %w", id, err)
	}
	return &b, nil
}

func (r *borrowerRepository) List(ctx context.Context) ([]*domain.Borrower, error) {
	query := `SELECT id, name, phone, notes, created_at FROM borrowers ORDER BY name, created_at`

	var borrowers []*domain.Borrower
	if err := sqlx.SelectContext(ctx, r.db, &borrowers, query); err != nil {
		return nil, fmt.Errorf("list borrowers: %w", translate(err))
	}
	return borrowers, nil
}
