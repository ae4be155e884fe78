package batch

import (
	"context"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/event"
	"credit-ledger/internal/infrastructure/monitoring"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) AddCustomer(ctx context.Context, name, email string) (ledger.Customer, error) {
	args := m.Called(ctx, name, email)
	return args.Get(0).(ledger.Customer), args.Error(1)
}

func (m *MockLedgerService) AddLoan(ctx context.Context, customerID int64, item string, amount decimal.Decimal, dueDate time.Time) (ledger.Loan, error) {
	args := m.Called(ctx, customerID, item, amount, dueDate)
	return args.Get(0).(ledger.Loan), args.Error(1)
}

func (m *MockLedgerService) RecordRepayment(ctx context.Context, loanID int64, amount decimal.Decimal, date time.Time) (ledger.RepaymentReceipt, error) {
	args := m.Called(ctx, loanID, amount, date)
	return args.Get(0).(ledger.RepaymentReceipt), args.Error(1)
}

func (m *MockLedgerService) GetCustomer(ctx context.Context, customerID int64) (ledger.Customer, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(ledger.Customer), args.Error(1)
}

func (m *MockLedgerService) GetLoan(ctx context.Context, loanID int64) (ledger.Loan, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(ledger.Loan), args.Error(1)
}

func (m *MockLedgerService) ListCustomerSummaries(ctx context.Context, asOf time.Time) ([]ledger.CustomerSummary, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]ledger.CustomerSummary), args.Error(1)
}

func (m *MockLedgerService) GetCustomerDetail(ctx context.Context, customerID int64, asOf time.Time) (ledger.CustomerDetail, error) {
	args := m.Called(ctx, customerID, asOf)
	return args.Get(0).(ledger.CustomerDetail), args.Error(1)
}

func (m *MockLedgerService) Snapshot(ctx context.Context) (ledger.State, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.State), args.Error(1)
}

func (m *MockLedgerService) RefreshStatuses(ctx context.Context, asOf time.Time) ([]ledger.CustomerSummary, []ledger.StatusTransition, error) {
	args := m.Called(ctx, asOf)
	var transitions []ledger.StatusTransition
	if t := args.Get(1); t != nil {
		transitions = t.([]ledger.StatusTransition)
	}
	return args.Get(0).([]ledger.CustomerSummary), transitions, args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerCreated(ctx context.Context, e event.CustomerCreatedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventPublisher) PublishLoanCreated(ctx context.Context, e event.LoanCreatedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventPublisher) PublishRepaymentRecorded(ctx context.Context, e event.RepaymentRecordedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventPublisher) PublishCustomerStatusChanged(ctx context.Context, e event.CustomerStatusChangedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func sweepState() ledger.State {
	return ledger.State{
		Customers: []ledger.Customer{
			{ID: 1, Name: "Aarav Sharma"},
			{ID: 2, Name: "Rohan Gupta"},
		},
		Loans: []ledger.Loan{
			{
				ID: 101, CustomerID: 1, Item: "Groceries", Principal: decimal.NewFromInt(1500), DueDate: day("2025-05-15"),
				Repayments: []ledger.Repayment{{Amount: decimal.NewFromInt(500), Date: day("2025-05-01")}},
			},
			{
				ID: 301, CustomerID: 2, Item: "Snacks", Principal: decimal.NewFromInt(1200), DueDate: day("2025-05-10"),
				Repayments: []ledger.Repayment{{Amount: decimal.NewFromInt(1200), Date: day("2025-05-05")}},
			},
		},
	}
}

type memoryStore struct {
	state ledger.State
}

func (m *memoryStore) Load(ctx context.Context) (ledger.State, bool, error) {
	return m.state, true, nil
}

func (m *memoryStore) Save(ctx context.Context, s ledger.State) error {
	m.state = s
	return nil
}

func (m *memoryStore) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJob(svc ledger.LedgerService, pub event.EventPublisher) *OverdueSweepJob {
	return NewOverdueSweepJob(svc, pub, discardLogger())
}

// newLedger returns a real ledger service over one customer owing 100 on a loan due far ahead.
func newLedger(t *testing.T, pub event.EventPublisher) ledger.LedgerService {
	t.Helper()
	state := ledger.State{
		Customers: []ledger.Customer{{ID: 1, Name: "Aarav Sharma"}},
		Loans: []ledger.Loan{
			{ID: 101, CustomerID: 1, Item: "Groceries", Principal: decimal.NewFromInt(100), DueDate: day("2099-01-01")},
		},
	}
	svc, err := ledger.NewLedgerService(context.Background(), &memoryStore{state: state}, pub, discardLogger())
	require.NoError(t, err)
	return svc
}

func TestOverdueSweepJob_PublishesTransitions(t *testing.T) {
	ctx := context.Background()
	asOf := day("2025-05-20")
	summaries := ledger.Dashboard(sweepState(), asOf)
	transition := ledger.StatusTransition{CustomerID: 1, Previous: ledger.StatusUpToDate, Summary: summaries[0].Summary}

	svc := new(MockLedgerService)
	pub := new(MockEventPublisher)
	svc.On("RefreshStatuses", ctx, asOf).Return(summaries, []ledger.StatusTransition{transition}, nil)
	pub.On("PublishCustomerStatusChanged", ctx, mock.MatchedBy(func(e event.CustomerStatusChangedEvent) bool {
		return e.CustomerID == 1 && e.OldStatus == "Up-to-date" && e.NewStatus == "Overdue" && e.OutstandingBalance == "1000.00"
	})).Return(nil).Once()

	job := newTestJob(svc, pub)
	job.now = func() time.Time { return asOf }
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(monitoring.Ledger.CustomersByStatus.WithLabelValues(string(ledger.StatusOverdue))))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitoring.Ledger.CustomersByStatus.WithLabelValues(string(ledger.StatusPaidUp))))
	assert.Equal(t, 0.0, testutil.ToFloat64(monitoring.Ledger.CustomersByStatus.WithLabelValues(string(ledger.StatusUpToDate))))
	assert.Equal(t, 1000.0, testutil.ToFloat64(monitoring.Ledger.OutstandingBalance))
	svc.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestOverdueSweepJob_RefreshError(t *testing.T) {
	ctx := context.Background()
	svc := new(MockLedgerService)
	svc.On("RefreshStatuses", ctx, mock.Anything).Return([]ledger.CustomerSummary(nil), nil, errors.New("store unavailable"))

	err := newTestJob(svc, new(MockEventPublisher)).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read ledger")
}

func TestOverdueSweepJob_PublishErrorIsReported(t *testing.T) {
	ctx := context.Background()
	asOf := day("2025-05-20")
	summaries := ledger.Dashboard(sweepState(), asOf)
	svc := new(MockLedgerService)
	pub := new(MockEventPublisher)
	svc.On("RefreshStatuses", ctx, asOf).Return(summaries,
		[]ledger.StatusTransition{{CustomerID: 1, Previous: ledger.StatusUpToDate, Summary: summaries[0].Summary}}, nil)
	pub.On("PublishCustomerStatusChanged", ctx, mock.Anything).Return(errors.New("channel closed"))

	job := newTestJob(svc, pub)
	job.now = func() time.Time { return asOf }
	err := job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
}

func TestOverdueSweepJob_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := new(MockLedgerService)

	err := newTestJob(svc, new(MockEventPublisher)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	svc.AssertNotCalled(t, "RefreshStatuses", mock.Anything, mock.Anything)
}

func TestOverdueSweepJob_RepaymentTransitionPublishedOnce(t *testing.T) {
	ctx := context.Background()
	pub := new(MockEventPublisher)
	pub.On("PublishRepaymentRecorded", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishCustomerStatusChanged", mock.Anything, mock.MatchedBy(func(e event.CustomerStatusChangedEvent) bool {
		return e.CustomerID == 1 && e.OldStatus == "Up-to-date" && e.NewStatus == "Paid Up"
	})).Return(nil)

	svc := newLedger(t, pub)
	job := newTestJob(svc, pub)

	require.NoError(t, job.Run(ctx))
	_, err := svc.RecordRepayment(ctx, 101, decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	pub.AssertNumberOfCalls(t, "PublishCustomerStatusChanged", 1)
}

func TestOverdueSweepJob_CalendarTransitionPublishedOnce(t *testing.T) {
	ctx := context.Background()
	pub := new(MockEventPublisher)
	pub.On("PublishCustomerStatusChanged", mock.Anything, mock.MatchedBy(func(e event.CustomerStatusChangedEvent) bool {
		return e.CustomerID == 1 && e.OldStatus == "Up-to-date" && e.NewStatus == "Overdue" && e.OutstandingBalance == "100.00"
	})).Return(nil)

	job := newTestJob(newLedger(t, pub), pub)
	job.now = func() time.Time { return day("2099-02-01") }

	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	pub.AssertNumberOfCalls(t, "PublishCustomerStatusChanged", 1)
}

func TestNewOverdueSweepJob_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewOverdueSweepJob(nil, new(MockEventPublisher), slog.Default())
	})
}
