package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type CustomerSummary struct {
	Customer Customer      `json:"customer"`
	Summary  StatusSummary `json:"summary"`
}

type LoanPosition struct {
	Loan      Loan            `json:"loan"`
	Remaining decimal.Decimal `json:"remaining"`
	Overdue   bool            `json:"overdue"`
}

type CustomerDetail struct {
	Customer Customer       `json:"customer"`
	Summary  StatusSummary  `json:"summary"`
	Loans    []LoanPosition `json:"loans"`
}

// Dashboard summarizes every customer in store order.
func Dashboard(s State, asOf time.Time) []CustomerSummary {
	summaries := make([]CustomerSummary, 0, len(s.Customers))
	for _, c := range s.Customers {
		summaries = append(summaries, CustomerSummary{
			Customer: c,
			Summary:  SummarizeCustomer(s.LoansFor(c.ID), asOf),
		})
	}
	return summaries
}

// Detail lists a customer's loans with the latest due date first.
func Detail(s State, customerID int64, asOf time.Time) (CustomerDetail, error) {
	customer, err := s.FindCustomer(customerID)
	if err != nil {
		return CustomerDetail{}, err
	}
	loans := s.LoansFor(customerID)
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].DueDate.After(loans[j].DueDate)
	})

	positions := make([]LoanPosition, 0, len(loans))
	for _, l := range loans {
		positions = append(positions, LoanPosition{
			Loan:      l,
			Remaining: RemainingBalance(l),
			Overdue:   IsOverdue(l, asOf),
		})
	}
	return CustomerDetail{
		Customer: customer,
		Summary:  SummarizeCustomer(loans, asOf),
		Loans:    positions,
	}, nil
}
