package dto

import (
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/view"
	"credit-ledger/internal/pkg/apperrors"
	"credit-ledger/internal/pkg/display"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ViewRef names the page a client should show next.
type ViewRef struct {
	Name       string `json:"name"`
	CustomerID string `json:"customerId,omitempty"`
	LoanID     string `json:"loanId,omitempty"`
}

func NewViewRef(v view.View) ViewRef {
	ref := ViewRef{Name: v.Name()}
	switch v := v.(type) {
	case view.CustomerDetail:
		ref.CustomerID = formatID(v.CustomerID)
	case view.AddLoan:
		ref.CustomerID = formatID(v.CustomerID)
	case view.RecordRepayment:
		ref.CustomerID = formatID(v.CustomerID)
		ref.LoanID = formatID(v.LoanID)
	}
	return ref
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return apperrors.NewValidationError("email", "email is required")
	}
	if r.Password == "" {
		return apperrors.NewValidationError("password", "password is required")
	}
	return nil
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Next      ViewRef   `json:"next"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateLoanRequest struct {
	ItemSold string `json:"itemSold"`
	Amount   string `json:"amount"`
	DueDate  string `json:"dueDate"`
}

// Parse converts the wire strings. Range checks stay with the ledger.
func (r *CreateLoanRequest) Parse() (decimal.Decimal, time.Time, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	due, err := parseDate("dueDate", r.DueDate)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	return amount, due, nil
}

type RecordRepaymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

func (r *RecordRepaymentRequest) Parse() (decimal.Decimal, time.Time, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	date, err := parseDate("date", r.Date)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	return amount, date, nil
}

type CustomerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type CustomerCreatedResponse struct {
	Customer CustomerResponse `json:"customer"`
	Next     ViewRef          `json:"next"`
}

type SummaryDisplay struct {
	OutstandingBalance string `json:"outstandingBalance"`
	NextDueDate        string `json:"nextDueDate"`
}

type StatusSummaryResponse struct {
	Status             string         `json:"status"`
	OutstandingBalance string         `json:"outstandingBalance"`
	NextDueDate        *string        `json:"nextDueDate,omitempty"`
	Display            SummaryDisplay `json:"display"`
}

type CustomerSummaryResponse struct {
	Customer CustomerResponse      `json:"customer"`
	Summary  StatusSummaryResponse `json:"summary"`
}

type RepaymentResponse struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

type LoanResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customerId"`
	ItemSold    string              `json:"itemSold"`
	Amount      string              `json:"amount"`
	DueDate     string              `json:"dueDate"`
	TotalRepaid string              `json:"totalRepaid"`
	Remaining   string              `json:"remaining"`
	Overdue     bool                `json:"overdue"`
	Repayments  []RepaymentResponse `json:"repayments"`
}

type LoanCreatedResponse struct {
	Loan LoanResponse `json:"loan"`
	Next ViewRef      `json:"next"`
}

type CustomerDetailResponse struct {
	Customer CustomerResponse      `json:"customer"`
	Summary  StatusSummaryResponse `json:"summary"`
	Loans    []LoanResponse        `json:"loans"`
}

// RepaymentReceiptResponse reports what was accepted. Clamped is true when the requested
// amount exceeded the remaining balance and only the balance was taken.
type RepaymentReceiptResponse struct {
	LoanID    string  `json:"loanId"`
	Requested string  `json:"requested"`
	Accepted  string  `json:"accepted"`
	Remaining string  `json:"remaining"`
	Date      string  `json:"date"`
	Clamped   bool    `json:"clamped"`
	Next      ViewRef `json:"next"`
}

type PageResponse struct {
	View      ViewRef                   `json:"view"`
	Notice    string                    `json:"notice,omitempty"`
	Dashboard []CustomerSummaryResponse `json:"dashboard,omitempty"`
	Detail    *CustomerDetailResponse   `json:"detail,omitempty"`
	Customer  *CustomerResponse         `json:"customer,omitempty"`
	Loan      *LoanResponse             `json:"loan,omitempty"`
}

func NewCustomerResponse(c ledger.Customer) CustomerResponse {
	return CustomerResponse{ID: formatID(c.ID), Name: c.Name, Email: c.Email}
}

func NewStatusSummaryResponse(s ledger.StatusSummary) StatusSummaryResponse {
	resp := StatusSummaryResponse{
		Status:             string(s.Status),
		OutstandingBalance: formatMoney(s.OutstandingBalance),
		Display: SummaryDisplay{
			OutstandingBalance: display.FormatRupees(s.OutstandingBalance),
			NextDueDate:        display.FormatDate(s.NextDueDate),
		},
	}
	if s.NextDueDate != nil {
		due := s.NextDueDate.Format(time.DateOnly)
		resp.NextDueDate = &due
	}
	return resp
}

func NewCustomerSummaryResponses(summaries []ledger.CustomerSummary) []CustomerSummaryResponse {
	resp := make([]CustomerSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = CustomerSummaryResponse{
			Customer: NewCustomerResponse(s.Customer),
			Summary:  NewStatusSummaryResponse(s.Summary),
		}
	}
	return resp
}

func NewLoanResponse(pos ledger.LoanPosition) LoanResponse {
	l := pos.Loan
	repayments := make([]RepaymentResponse, len(l.Repayments))
	for i, r := range l.Repayments {
		repayments[i] = RepaymentResponse{Amount: formatMoney(r.Amount), Date: r.Date.Format(time.DateOnly)}
	}
	return LoanResponse{
		ID:          formatID(l.ID),
		CustomerID:  formatID(l.CustomerID),
		ItemSold:    l.Item,
		Amount:      formatMoney(l.Principal),
		DueDate:     l.DueDate.Format(time.DateOnly),
		TotalRepaid: formatMoney(ledger.TotalRepaid(l)),
		Remaining:   formatMoney(pos.Remaining),
		Overdue:     pos.Overdue,
		Repayments:  repayments,
	}
}

// NewLoanPosition derives the balance fields for a single loan.
func NewLoanPosition(l ledger.Loan, asOf time.Time) ledger.LoanPosition {
	return ledger.LoanPosition{Loan: l, Remaining: ledger.RemainingBalance(l), Overdue: ledger.IsOverdue(l, asOf)}
}

func NewCustomerDetailResponse(d ledger.CustomerDetail) CustomerDetailResponse {
	loans := make([]LoanResponse, len(d.Loans))
	for i, pos := range d.Loans {
		loans[i] = NewLoanResponse(pos)
	}
	return CustomerDetailResponse{
		Customer: NewCustomerResponse(d.Customer),
		Summary:  NewStatusSummaryResponse(d.Summary),
		Loans:    loans,
	}
}

func NewRepaymentReceiptResponse(r ledger.RepaymentReceipt, next view.View) RepaymentReceiptResponse {
	return RepaymentReceiptResponse{
		LoanID:    formatID(r.LoanID),
		Requested: formatMoney(r.Requested),
		Accepted:  formatMoney(r.Accepted),
		Remaining: formatMoney(r.Remaining),
		Date:      r.Date.Format(time.DateOnly),
		Clamped:   r.Clamped(),
		Next:      NewViewRef(next),
	}
}

func NewPageResponse(p view.Page) PageResponse {
	resp := PageResponse{View: NewViewRef(p.View)}
	if p.Dashboard != nil {
		resp.Dashboard = NewCustomerSummaryResponses(p.Dashboard)
	}
	if p.Detail != nil {
		d := NewCustomerDetailResponse(*p.Detail)
		resp.Detail = &d
	}
	if p.Customer != nil {
		c := NewCustomerResponse(*p.Customer)
		resp.Customer = &c
	}
	if p.Loan != nil {
		l := NewLoanResponse(*p.Loan)
		resp.Loan = &l
	}
	return resp
}

const maxAmountDigits = 12

// amountPattern admits plain amounts with at most two decimal places. Exponent forms never match.
var amountPattern = regexp.MustCompile(`^[+-]?\d{1,12}(\.\d{1,2})?$`)

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, apperrors.NewValidationError("amount", "amount is required")
	}
	if !amountPattern.MatchString(s) {
		return decimal.Decimal{}, apperrors.NewValidationError("amount",
			fmt.Sprintf("amount must be a plain number with at most %d digits before and 2 after the decimal point", maxAmountDigits))
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, apperrors.NewValidationErrorWithCause("amount", "amount must be a number", err)
	}
	return amount, nil
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperrors.NewValidationError(field, field+" is required")
	}
	t, err := display.ParseDate(s)
	if err != nil {
		return time.Time{}, apperrors.NewValidationErrorWithCause(field, field+" must be a date in YYYY-MM-DD form", err)
	}
	return t, nil
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
