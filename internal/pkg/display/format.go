package display

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2 Jan 2006"

// FormatDate renders a calendar date as "15 May 2025", or "N/A" when there is none.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.Format(dateLayout)
}

func FormatRupees(amount decimal.Decimal) string {
	return "₹" + amount.StringFixed(2)
}

// FormatAmount is FormatRupees with an ASCII currency code, for outputs whose fonts lack "₹".
func FormatAmount(amount decimal.Decimal) string {
	return "INR " + amount.StringFixed(2)
}

// ParseDate accepts the ISO calendar date used on the wire.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
