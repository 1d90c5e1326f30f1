package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Borrower is owned by the directory; the ledger only checks that one exists.
type Borrower struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewBorrower(name string, phone, notes *string, now time.Time) (*Borrower, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, customError.WrapInvalidBorrowerRequest("name is required")
	}
	return &Borrower{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     nonEmpty(phone),
		Notes:     nonEmpty(notes),
		CreatedAt: now,
	}, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

type CreateBorrowerRequest struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}
