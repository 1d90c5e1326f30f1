package domain

import (
	"github.com/shopspring/decimal"
)

// RepaymentStanding is a reporting view of received-vs-lent. It never feeds back into Loan.Status.
type RepaymentStanding string

const (
	StandingActive  RepaymentStanding = "active"
	StandingPaidOff RepaymentStanding = "paid_off"
	StandingProfit  RepaymentStanding = "profit"
)

func StandingOf(lent, received decimal.Decimal) RepaymentStanding {
	switch {
	case received.GreaterThan(lent):
		return StandingProfit
	case received.Equal(lent) && lent.IsPositive():
		return StandingPaidOff
	default:
		return StandingActive
	}
}

type LoanPosition struct {
	LoanID               string            `json:"loan_id"`
	BorrowerID           string            `json:"borrower_id"`
	Status               LoanStatus        `json:"status"`
	PrincipalAmount      decimal.Decimal   `json:"principal_amount"`
	OutstandingPrincipal decimal.Decimal   `json:"outstanding_principal"`
	TotalReceived        decimal.Decimal   `json:"total_received"`
	InterestReceived     decimal.Decimal   `json:"interest_received"`
	PrincipalReceived    decimal.Decimal   `json:"principal_received"`
	PaymentCount         int               `json:"payment_count"`
	Standing             RepaymentStanding `json:"standing"`
}

func NewLoanPosition(l *Loan, totals PaymentTotals) LoanPosition {
	return LoanPosition{
		LoanID:               l.ID,
		BorrowerID:           l.BorrowerID,
		Status:               l.Status,
		PrincipalAmount:      l.PrincipalAmount,
		OutstandingPrincipal: l.OutstandingPrincipal,
		TotalReceived:        totals.Amount,
		InterestReceived:     totals.Interest,
		PrincipalReceived:    totals.Principal,
		PaymentCount:         totals.Count,
		Standing:             StandingOf(l.PrincipalAmount, totals.Amount),
	}
}

// PortfolioSummary is a read-only projection over loans and their payments.
type PortfolioSummary struct {
	TotalLent            decimal.Decimal `json:"total_lent"`
	TotalRepaid          decimal.Decimal `json:"total_repaid"`
	InterestEarned       decimal.Decimal `json:"interest_earned"`
	PrincipalRecovered   decimal.Decimal `json:"principal_recovered"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	ActiveLoans          int             `json:"active_loans"`
	ClosedLoans          int             `json:"closed_loans"`
	DefaultedLoans       int             `json:"defaulted_loans"`
	Positions            []LoanPosition  `json:"positions"`
}

func (s *PortfolioSummary) Add(p LoanPosition) {
	s.TotalLent = s.TotalLent.Add(p.PrincipalAmount)
	s.TotalRepaid = s.TotalRepaid.Add(p.TotalReceived)
	s.InterestEarned = s.InterestEarned.Add(p.InterestReceived)
	s.PrincipalRecovered = s.PrincipalRecovered.Add(p.PrincipalReceived)
	s.OutstandingPrincipal = s.OutstandingPrincipal.Add(p.OutstandingPrincipal)

	switch p.Status {
	case LoanStatusActive:
		s.ActiveLoans++
	case LoanStatusClosed:
		s.ClosedLoans++
	case LoanStatusDefaulted:
		s.DefaultedLoans++
	}
	s.Positions = append(s.Positions, p)
}
