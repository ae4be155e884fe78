// Package view models the shop's pages as a closed set of values and resolves each
// one against the ledger.
package view

import (
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"fmt"
	"time"
)

const (
	NameLogin           = "login"
	NameDashboard       = "dashboard"
	NameCustomerDetail  = "customerDetail"
	NameAddCustomer     = "addCustomer"
	NameAddLoan         = "addLoan"
	NameRecordRepayment = "recordRepayment"
)

// View is implemented only by the page types in this package.
type View interface {
	Name() string
	isView()
}

type Login struct{}

type Dashboard struct{}

type CustomerDetail struct {
	CustomerID int64 `json:"customerId"`
}

type AddCustomer struct{}

type AddLoan struct {
	CustomerID int64 `json:"customerId"`
}

type RecordRepayment struct {
	CustomerID int64 `json:"customerId"`
	LoanID     int64 `json:"loanId"`
}

func (Login) Name() string           { return NameLogin }
func (Dashboard) Name() string       { return NameDashboard }
func (CustomerDetail) Name() string  { return NameCustomerDetail }
func (AddCustomer) Name() string     { return NameAddCustomer }
func (AddLoan) Name() string         { return NameAddLoan }
func (RecordRepayment) Name() string { return NameRecordRepayment }

func (Login) isView()           {}
func (Dashboard) isView()       {}
func (CustomerDetail) isView()  {}
func (AddCustomer) isView()     {}
func (AddLoan) isView()         {}
func (RecordRepayment) isView() {}

// Parse builds a View from its name and the ids it needs. Ids a view does not use are ignored.
func Parse(name string, customerID, loanID int64) (View, error) {
	switch name {
	case NameLogin:
		return Login{}, nil
	case NameDashboard, "":
		return Dashboard{}, nil
	case NameAddCustomer:
		return AddCustomer{}, nil
	case NameCustomerDetail:
		if customerID <= 0 {
			return nil, apperrors.NewValidationError("customerId", "customer id is required for this view")
		}
		return CustomerDetail{CustomerID: customerID}, nil
	case NameAddLoan:
		if customerID <= 0 {
			return nil, apperrors.NewValidationError("customerId", "customer id is required for this view")
		}
		return AddLoan{CustomerID: customerID}, nil
	case NameRecordRepayment:
		if customerID <= 0 {
			return nil, apperrors.NewValidationError("customerId", "customer id is required for this view")
		}
		if loanID <= 0 {
			return nil, apperrors.NewValidationError("loanId", "loan id is required for this view")
		}
		return RecordRepayment{CustomerID: customerID, LoanID: loanID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown view %q", apperrors.ErrInvalidArgument, name)
	}
}

// Next is the view shown after the action offered by v succeeds.
func Next(v View) View {
	switch v := v.(type) {
	case Login, AddCustomer:
		return Dashboard{}
	case AddLoan:
		return CustomerDetail{CustomerID: v.CustomerID}
	case RecordRepayment:
		return CustomerDetail{CustomerID: v.CustomerID}
	default:
		return v
	}
}

// Page is a resolved view with the ledger data it displays.
type Page struct {
	View      View                     `json:"-"`
	Dashboard []ledger.CustomerSummary `json:"dashboard,omitempty"`
	Detail    *ledger.CustomerDetail   `json:"detail,omitempty"`
	Customer  *ledger.Customer         `json:"customer,omitempty"`
	Loan      *ledger.LoanPosition     `json:"loan,omitempty"`
}

// Navigate resolves v against state. Unauthenticated sessions always land on Login. A view
// that references a missing customer or loan falls back to the dashboard and the lookup
// error is returned alongside it.
func Navigate(state ledger.State, authenticated bool, v View, asOf time.Time) (Page, error) {
	if !authenticated {
		return Page{View: Login{}}, nil
	}

	page, err := resolve(state, v, asOf)
	if errors.Is(err, apperrors.ErrNotFound) {
		return Page{View: Dashboard{}, Dashboard: ledger.Dashboard(state, asOf)}, err
	}
	return page, err
}

func resolve(state ledger.State, v View, asOf time.Time) (Page, error) {
	switch v := v.(type) {
	case Login:
		return Page{View: Dashboard{}, Dashboard: ledger.Dashboard(state, asOf)}, nil
	case Dashboard:
		return Page{View: v, Dashboard: ledger.Dashboard(state, asOf)}, nil
	case AddCustomer:
		return Page{View: v}, nil
	case CustomerDetail:
		detail, err := ledger.Detail(state, v.CustomerID, asOf)
		if err != nil {
			return Page{}, err
		}
		return Page{View: v, Detail: &detail}, nil
	case AddLoan:
		customer, err := state.FindCustomer(v.CustomerID)
		if err != nil {
			return Page{}, err
		}
		return Page{View: v, Customer: &customer}, nil
	case RecordRepayment:
		customer, err := state.FindCustomer(v.CustomerID)
		if err != nil {
			return Page{}, err
		}
		loan, err := state.FindLoan(v.LoanID)
		if err != nil {
			return Page{}, err
		}
		if loan.CustomerID != customer.ID {
			return Page{}, fmt.Errorf("%w: loan %d does not belong to customer %d", apperrors.ErrNotFound, loan.ID, customer.ID)
		}
		return Page{View: v, Customer: &customer, Loan: &ledger.LoanPosition{
			Loan:      loan,
			Remaining: ledger.RemainingBalance(loan),
			Overdue:   ledger.IsOverdue(loan, asOf),
		}}, nil
	default:
		return Page{}, fmt.Errorf("%w: unsupported view %T", apperrors.ErrInvalidArgument, v)
	}
}
