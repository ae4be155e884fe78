package ledger

import (
	"credit-ledger/internal/pkg/apperrors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CustomerStatus string

const (
	StatusPaidUp   CustomerStatus = "Paid Up"
	StatusUpToDate CustomerStatus = "Up-to-date"
	StatusOverdue  CustomerStatus = "Overdue"
)

// StatusSummary is derived from a customer's loans on every read and never stored.
type StatusSummary struct {
	Status             CustomerStatus  `json:"status"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	NextDueDate        *time.Time      `json:"nextDueDate,omitempty"`
}

// RepaymentReceipt reports what ApplyRepayment accepted. Accepted is lower than
// Requested when an over-payment was clamped to the remaining balance.
type RepaymentReceipt struct {
	LoanID    int64           `json:"loanId"`
	Requested decimal.Decimal `json:"requested"`
	Accepted  decimal.Decimal `json:"accepted"`
	Remaining decimal.Decimal `json:"remaining"`
	Date      time.Time       `json:"date"`
}

func (r RepaymentReceipt) Clamped() bool {
	return r.Accepted.LessThan(r.Requested)
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TotalRepaid(loan Loan) decimal.Decimal {
	total := decimal.Zero
	for _, r := range loan.Repayments {
		total = total.Add(r.Amount)
	}
	return total
}

func RemainingBalance(loan Loan) decimal.Decimal {
	return loan.Principal.Sub(TotalRepaid(loan))
}

// IsOverdue reports whether the loan still has a balance and its due date lies strictly before asOf.
func IsOverdue(loan Loan, asOf time.Time) bool {
	if !RemainingBalance(loan).IsPositive() {
		return false
	}
	return loan.DueDate.Before(asOf)
}

func SummarizeCustomer(loans []Loan, asOf time.Time) StatusSummary {
	outstanding := decimal.Zero
	overdue := false
	var next *time.Time

	for _, loan := range loans {
		remaining := RemainingBalance(loan)
		if !remaining.IsPositive() {
			continue
		}
		outstanding = outstanding.Add(remaining)
		if IsOverdue(loan, asOf) {
			overdue = true
		}
		if next == nil || loan.DueDate.Before(*next) {
			due := loan.DueDate
			next = &due
		}
	}

	summary := StatusSummary{OutstandingBalance: outstanding, NextDueDate: next}
	switch {
	case outstanding.IsZero():
		summary.Status = StatusPaidUp
	case overdue:
		summary.Status = StatusOverdue
	default:
		summary.Status = StatusUpToDate
	}
	return summary
}

// ApplyRepayment returns a copy of loan with the repayment appended. Amounts above the
// remaining balance are reduced to it; the input loan is never modified.
func ApplyRepayment(loan Loan, amount decimal.Decimal, date time.Time) (Loan, RepaymentReceipt, error) {
	if !amount.IsPositive() {
		return loan, RepaymentReceipt{}, apperrors.NewValidationErrorWithCause("amount", "repayment amount must be greater than zero", apperrors.ErrInvalidRepaymentAmount)
	}
	if date.IsZero() {
		return loan, RepaymentReceipt{}, apperrors.NewValidationError("date", "repayment date is required")
	}

	remaining := RemainingBalance(loan)
	effective := decimal.Min(amount, remaining)
	if !effective.IsPositive() {
		return loan, RepaymentReceipt{}, apperrors.NewValidationErrorWithCause("amount", "loan has no remaining balance", apperrors.ErrLoanFullyPaid)
	}

	updated := loan.clone()
	paidOn := CalendarDate(date)
	updated.Repayments = append(updated.Repayments, Repayment{Amount: effective, Date: paidOn})

	return updated, RepaymentReceipt{
		LoanID:    loan.ID,
		Requested: amount,
		Accepted:  effective,
		Remaining: remaining.Sub(effective),
		Date:      paidOn,
	}, nil
}

func NewLoan(id, customerID int64, item string, amount decimal.Decimal, dueDate time.Time) (Loan, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return Loan{}, apperrors.NewValidationError("itemSold", "item description is required")
	}
	if !amount.IsPositive() {
		return Loan{}, apperrors.NewValidationError("amount", "loan amount must be greater than zero")
	}
	if dueDate.IsZero() {
		return Loan{}, apperrors.NewValidationError("dueDate", "due date is required")
	}
	return Loan{
		ID:         id,
		CustomerID: customerID,
		Item:       item,
		Principal:  amount,
		DueDate:    CalendarDate(dueDate),
		Repayments: []Repayment{},
	}, nil
}

func NewCustomer(id int64, name, email string) (Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Customer{}, apperrors.NewValidationError("name", "customer name is required")
	}
	return Customer{ID: id, Name: name, Email: strings.TrimSpace(email)}, nil
}
