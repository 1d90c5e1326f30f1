package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Storage limits: amounts are NUMERIC(15, 2) and rates NUMERIC(7, 4).
var (
	MaxAmount    = decimal.RequireFromString("9999999999999.99")
	MaxRateInput = decimal.RequireFromString("999.9999")
)

const RateInputScale = int32(4)

var (
	hundred        = decimal.NewFromInt(100)
	daysPerWeek    = decimal.NewFromInt(7)
	daysPerMonth   = decimal.NewFromInt(30)
	currencyPlaces = int32(2)
)

// ConvertRateToDaily turns a nominal percentage per period into a daily decimal rate.
// A month is always 30 days. The result is not rounded.
func ConvertRateToDaily(rateInput decimal.Decimal, frequency InterestFrequency) decimal.Decimal {
	divisor := daysPerMonth
	if frequency == FrequencyWeekly {
		divisor = daysPerWeek
	}
	return rateInput.Div(hundred).Div(divisor)
}

// AccruedInterest computes simple interest for the days after since up to and
// including until. A non-positive day count yields exactly zero.
func AccruedInterest(principal, dailyRate decimal.Decimal, since, until time.Time) decimal.Decimal {
	days := utils.DaysBetween(since, until)
	if days <= 0 {
		return decimal.Zero
	}
	return principal.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))).Round(currencyPlaces)
}

// Allocation is how one payment splits between interest and principal.
type Allocation struct {
	Accrued            decimal.Decimal `json:"accrued_interest"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	// InterestShortfall is accrued interest the payment did not cover. It is not carried forward.
	InterestShortfall decimal.Decimal `json:"interest_shortfall"`
}

// Allocate applies the interest-first rule.
func Allocate(accrued, amount decimal.Decimal) Allocation {
	if amount.GreaterThanOrEqual(accrued) {
		return Allocation{
			Accrued:            accrued,
			InterestComponent:  accrued,
			PrincipalComponent: amount.Sub(accrued),
			InterestShortfall:  decimal.Zero,
		}
	}
	return Allocation{
		Accrued:            accrued,
		InterestComponent:  amount,
		PrincipalComponent: decimal.Zero,
		InterestShortfall:  accrued.Sub(amount),
	}
}
