package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// DateOnly strips the clock from t, keeping the calendar date as seen in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from since to until.
// The result is negative when until is before since.
func DaysBetween(since, until time.Time) int {
	// Both sides are UTC midnights, so the difference is always a whole number of days.
	// Unix seconds avoid time.Duration, which saturates after about 292 years.
	return int((DateOnly(until).Unix() - DateOnly(since).Unix()) / secondsPerDay)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOnly(t).Format(DateLayout)
}

// HasCurrencyPrecision reports whether d has at most two decimal places.
func HasCurrencyPrecision(d decimal.Decimal) bool {
	return HasMaxScale(d, 2)
}

// HasMaxScale reports whether d has at most places decimal places.
func HasMaxScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
