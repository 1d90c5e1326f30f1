package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusClosed    LoanStatus = "closed"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

type InterestFrequency string

const (
	FrequencyWeekly  InterestFrequency = "weekly"
	FrequencyMonthly InterestFrequency = "monthly"
)

// ParseInterestFrequency accepts "weekly" or "monthly" in any case.
func ParseInterestFrequency(s string) (InterestFrequency, error) {
	switch InterestFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	}
	return "", fmt.Errorf("unknown interest frequency %q", s)
}

// Loan represents a loan entity.
//
// Loan values are snapshots. Transitions return a new Loan and leave the
// receiver untouched, so a failed persist never leaves a half-applied loan behind.
type Loan struct {
	ID                   string            `json:"id" db:"id"`
	BorrowerID           string            `json:"borrower_id" db:"borrower_id"`
	PrincipalAmount      decimal.Decimal   `json:"principal_amount" db:"principal_amount"`
	OutstandingPrincipal decimal.Decimal   `json:"outstanding_principal" db:"outstanding_principal"`
	InterestRateInput    decimal.Decimal   `json:"interest_rate_input" db:"interest_rate_input"`
	InterestFrequency    InterestFrequency `json:"interest_frequency" db:"interest_frequency"`
	DailyInterestRate    decimal.Decimal   `json:"daily_interest_rate" db:"daily_interest_rate"`
	StartDate            time.Time         `json:"start_date" db:"start_date"`
	LastInterestCalcDate time.Time         `json:"last_interest_calc_date" db:"last_interest_calc_date"`
	Status               LoanStatus        `json:"status" db:"status"`
	Version              int               `json:"version" db:"version"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// NewLoan originates a loan. The daily rate is derived here once and never recomputed.
func NewLoan(borrowerID string, principal, rateInput decimal.Decimal, frequency InterestFrequency, startDate, now time.Time) (*Loan, error) {
	if borrowerID == "" {
		return nil, customError.WrapInvalidLoanRequest("borrower_id is required")
	}
	if !principal.IsPositive() || !utils.HasCurrencyPrecision(principal) {
		return nil, customError.WrapInvalidLoanRequest("principal_amount must be positive with at most 2 decimal places")
	}
	if principal.GreaterThan(MaxAmount) {
		return nil, customError.WrapInvalidLoanRequest("principal_amount must not exceed " + MaxAmount.String())
	}
	if rateInput.IsNegative() {
		return nil, customError.WrapInvalidLoanRequest("interest_rate must not be negative")
	}
	if rateInput.GreaterThan(MaxRateInput) || !utils.HasMaxScale(rateInput, RateInputScale) {
		return nil, customError.WrapInvalidLoanRequest("interest_rate must not exceed " + MaxRateInput.String() + " and have at most 4 decimal places")
	}
	if frequency != FrequencyWeekly && frequency != FrequencyMonthly {
		return nil, customError.WrapInvalidLoanRequest(fmt.Sprintf("unsupported interest frequency %q", frequency))
	}
	if startDate.IsZero() {
		return nil, customError.WrapInvalidLoanRequest("start_date is required")
	}

	start := utils.DateOnly(startDate)
	return &Loan{
		ID:                   uuid.NewString(),
		BorrowerID:           borrowerID,
		PrincipalAmount:      principal,
		OutstandingPrincipal: principal,
		InterestRateInput:    rateInput,
		InterestFrequency:    frequency,
		DailyInterestRate:    ConvertRateToDaily(rateInput, frequency),
		StartDate:            start,
		LastInterestCalcDate: start,
		Status:               LoanStatusActive,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (l Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// AccruedAsOf is the interest owed on the current outstanding principal
// for the days between the last settlement and asOf.
func (l Loan) AccruedAsOf(asOf time.Time) decimal.Decimal {
	return AccruedInterest(l.OutstandingPrincipal, l.DailyInterestRate, l.LastInterestCalcDate, asOf)
}

// CheckPayable validates that a payment dated paymentDate may be applied.
func (l Loan) CheckPayable(paymentDate time.Time) error {
	if !l.IsActive() {
		return customError.WrapInvalidState(l.ID, string(l.Status))
	}
	if utils.DaysBetween(l.LastInterestCalcDate, paymentDate) < 0 {
		return customError.WrapPaymentDateBeforeLastCalc(l.ID, utils.FormatDate(paymentDate), utils.FormatDate(l.LastInterestCalcDate))
	}
	return nil
}

// ApplyAllocation reduces the outstanding principal by the allocation's principal
// component and moves the interest clock to paymentDate.
func (l Loan) ApplyAllocation(a Allocation, paymentDate, now time.Time) (Loan, error) {
	if err := l.CheckPayable(paymentDate); err != nil {
		return l, err
	}

	next := l
	next.OutstandingPrincipal = l.OutstandingPrincipal.Sub(a.PrincipalComponent)
	if next.OutstandingPrincipal.LessThanOrEqual(decimal.Zero) {
		next.OutstandingPrincipal = decimal.Zero
		next.Status = LoanStatusClosed
	}
	// The clock advances even when the payment covered only part of the interest.
	next.LastInterestCalcDate = utils.DateOnly(paymentDate)
	next.UpdatedAt = now

	return next, nil
}

// MarkDefaulted transitions ACTIVE -> DEFAULTED. Payment math never reaches this state.
func (l Loan) MarkDefaulted(now time.Time) (Loan, error) {
	if !l.IsActive() {
		return l, customError.WrapInvalidState(l.ID, string(l.Status))
	}
	next := l
	next.Status = LoanStatusDefaulted
	next.UpdatedAt = now
	return next, nil
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	BorrowerID        string          `json:"borrower_id" validate:"required,uuid"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount" validate:"decimal_gt_zero,decimal_currency"`
	InterestRate      decimal.Decimal `json:"interest_rate" validate:"decimal_gte_zero"`
	InterestFrequency string          `json:"interest_frequency" validate:"required,oneof=weekly monthly Weekly Monthly"`
	StartDate         string          `json:"start_date" validate:"required,datetime=2006-01-02"`
}

type AccrualPreview struct {
	LoanID               string          `json:"loan_id"`
	AsOf                 string          `json:"as_of"`
	LastInterestCalcDate string          `json:"last_interest_calc_date"`
	Days                 int             `json:"days"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	DailyInterestRate    decimal.Decimal `json:"daily_interest_rate"`
	AccruedInterest      decimal.Decimal `json:"accrued_interest"`
	TotalDue             decimal.Decimal `json:"total_due"`
}
