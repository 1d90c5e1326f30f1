package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Payment is an immutable record of one repayment.
type Payment struct {
	ID                 string          `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	InterestComponent  decimal.Decimal `json:"interest_component" db:"interest_component"`
	PrincipalComponent decimal.Decimal `json:"principal_component" db:"principal_component"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

func NewPayment(loanID string, paymentDate time.Time, amount decimal.Decimal, a Allocation, now time.Time) *Payment {
	return &Payment{
		ID:                 uuid.NewString(),
		LoanID:             loanID,
		PaymentDate:        utils.DateOnly(paymentDate),
		Amount:             amount,
		InterestComponent:  a.InterestComponent,
		PrincipalComponent: a.PrincipalComponent,
		CreatedAt:          now,
	}
}

// PaymentTotals aggregates the payments recorded against one loan.
type PaymentTotals struct {
	Count     int             `json:"count" db:"count"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Interest  decimal.Decimal `json:"interest" db:"interest"`
	Principal decimal.Decimal `json:"principal" db:"principal"`
}

func (t *PaymentTotals) Add(p *Payment) {
	t.Count++
	t.Amount = t.Amount.Add(p.Amount)
	t.Interest = t.Interest.Add(p.InterestComponent)
	t.Principal = t.Principal.Add(p.PrincipalComponent)
}

type MakePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt_zero,decimal_currency"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
}

type PaymentResult struct {
	PaymentID               string          `json:"payment_id"`
	LoanID                  string          `json:"loan_id"`
	PaymentDate             string          `json:"payment_date"`
	Amount                  decimal.Decimal `json:"amount"`
	AccruedInterest         decimal.Decimal `json:"accrued_interest"`
	InterestComponent       decimal.Decimal `json:"interest_component"`
	PrincipalComponent      decimal.Decimal `json:"principal_component"`
	InterestShortfall       decimal.Decimal `json:"interest_shortfall"`
	NewOutstandingPrincipal decimal.Decimal `json:"new_outstanding_principal"`
	Status                  LoanStatus      `json:"status"`
}
