package ledger

import (
	"credit-ledger/internal/pkg/apperrors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the whole ledger: every customer and every loan. Update methods never modify
// the receiver; they return the next State so callers can persist it before publishing it.
type State struct {
	Customers []Customer `json:"customers"`
	Loans     []Loan     `json:"loans"`
}

func (s State) FindCustomer(id int64) (Customer, error) {
	for _, c := range s.Customers {
		if c.ID == id {
			return c, nil
		}
	}
	return Customer{}, apperrors.NewNotFoundError("customer", id)
}

func (s State) FindLoan(id int64) (Loan, error) {
	i := s.loanIndex(id)
	if i < 0 {
		return Loan{}, apperrors.NewNotFoundError("loan", id)
	}
	return s.Loans[i], nil
}

func (s State) LoansFor(customerID int64) []Loan {
	var loans []Loan
	for _, l := range s.Loans {
		if l.CustomerID == customerID {
			loans = append(loans, l)
		}
	}
	return loans
}

func (s State) AddCustomer(name, email string) (State, Customer, error) {
	customer, err := NewCustomer(s.nextCustomerID(), name, email)
	if err != nil {
		return s, Customer{}, err
	}
	next := State{
		Customers: append(append(make([]Customer, 0, len(s.Customers)+1), s.Customers...), customer),
		Loans:     s.Loans,
	}
	return next, customer, nil
}

func (s State) AddLoan(customerID int64, item string, amount decimal.Decimal, dueDate time.Time) (State, Loan, error) {
	if _, err := s.FindCustomer(customerID); err != nil {
		return s, Loan{}, err
	}
	loan, err := NewLoan(s.nextLoanID(), customerID, item, amount, dueDate)
	if err != nil {
		return s, Loan{}, err
	}
	next := State{
		Customers: s.Customers,
		Loans:     append(append(make([]Loan, 0, len(s.Loans)+1), s.Loans...), loan),
	}
	return next, loan, nil
}

func (s State) RecordRepayment(loanID int64, amount decimal.Decimal, date time.Time) (State, RepaymentReceipt, error) {
	i := s.loanIndex(loanID)
	if i < 0 {
		return s, RepaymentReceipt{}, apperrors.NewNotFoundError("loan", loanID)
	}
	updated, receipt, err := ApplyRepayment(s.Loans[i], amount, date)
	if err != nil {
		return s, RepaymentReceipt{}, err
	}
	loans := append(make([]Loan, 0, len(s.Loans)), s.Loans...)
	loans[i] = updated
	return State{Customers: s.Customers, Loans: loans}, receipt, nil
}

// Validate checks the ledger invariants on state read back from a store.
func (s State) Validate() error {
	customers := make(map[int64]struct{}, len(s.Customers))
	for _, c := range s.Customers {
		if _, dup := customers[c.ID]; dup {
			return fmt.Errorf("%w: duplicate customer id %d", apperrors.ErrCorruptState, c.ID)
		}
		customers[c.ID] = struct{}{}
	}

	loans := make(map[int64]struct{}, len(s.Loans))
	for _, l := range s.Loans {
		if _, dup := loans[l.ID]; dup {
			return fmt.Errorf("%w: duplicate loan id %d", apperrors.ErrCorruptState, l.ID)
		}
		loans[l.ID] = struct{}{}
		if _, ok := customers[l.CustomerID]; !ok {
			return fmt.Errorf("%w: loan %d references unknown customer %d", apperrors.ErrCorruptState, l.ID, l.CustomerID)
		}
		if !l.Principal.IsPositive() {
			return fmt.Errorf("%w: loan %d has non-positive principal", apperrors.ErrCorruptState, l.ID)
		}
		for _, r := range l.Repayments {
			if !r.Amount.IsPositive() {
				return fmt.Errorf("%w: loan %d has non-positive repayment", apperrors.ErrCorruptState, l.ID)
			}
		}
		if RemainingBalance(l).IsNegative() {
			return fmt.Errorf("%w: loan %d repayments exceed principal", apperrors.ErrCorruptState, l.ID)
		}
	}
	return nil
}

func (s State) loanIndex(id int64) int {
	for i, l := range s.Loans {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s State) nextCustomerID() int64 {
	var highest int64
	for _, c := range s.Customers {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return highest + 1
}

func (s State) nextLoanID() int64 {
	var highest int64
	for _, l := range s.Loans {
		if l.ID > highest {
			highest = l.ID
		}
	}
	return highest + 1
}
