package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Loan is immutable after creation except for Repayments, which only grows.
type Loan struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customerId"`
	Item       string          `json:"itemSold"`
	Principal  decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"dueDate"`
	Repayments []Repayment     `json:"repayments"`
}

type Repayment struct {
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

func (l Loan) clone() Loan {
	c := l
	c.Repayments = append([]Repayment(nil), l.Repayments...)
	return c
}
