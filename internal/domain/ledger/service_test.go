package ledger_test

import (
	"bytes"
	"context"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/event"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Load(ctx context.Context) (ledger.State, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.State), args.Bool(1), args.Error(2)
}

func (m *MockRecordStore) Save(ctx context.Context, state ledger.State) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockRecordStore) Close() error {
	return m.Called().Error(0)
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

// memoryStore counts saves and keeps the last saved state.
type memoryStore struct {
	mu    sync.Mutex
	state ledger.State
	found bool
	saves int
}

func (m *memoryStore) Load(ctx context.Context) (ledger.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.found, nil
}

func (m *memoryStore) Save(ctx context.Context, state ledger.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.found = state, true
	m.saves++
	return nil
}

func (m *memoryStore) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newService(t *testing.T, store ledger.RecordStore) ledger.LedgerService {
	t.Helper()
	svc, err := ledger.NewLedgerService(context.Background(), store, event.NewNoopPublisher(testLogger()), testLogger())
	require.NoError(t, err)
	return svc
}

func TestNewLedgerServiceSeedsEmptyStore(t *testing.T) {
	store := &memoryStore{}
	svc := newService(t, store)

	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.state.Customers, 10)

	c, err := svc.GetCustomer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Aarav Sharma", c.Name)
}

func TestNewLedgerServiceKeepsSavedState(t *testing.T) {
	saved := ledger.State{Customers: []ledger.Customer{{ID: 5, Name: "Only Customer"}}}
	store := &memoryStore{state: saved, found: true}
	svc := newService(t, store)

	assert.Equal(t, 0, store.saves)
	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved, snapshot)
}

func TestNewLedgerServiceRejectsCorruptState(t *testing.T) {
	corrupt := ledger.State{Loans: []ledger.Loan{{ID: 1, CustomerID: 9, Principal: decimal.NewFromInt(5)}}}
	store := &memoryStore{state: corrupt, found: true}

	_, err := ledger.NewLedgerService(context.Background(), store, event.NewNoopPublisher(testLogger()), testLogger())
	assert.True(t, errors.Is(err, apperrors.ErrCorruptState))
}

func TestNewLedgerServiceLoadError(t *testing.T) {
	store := new(MockRecordStore)
	store.On("Load", mock.Anything).Return(ledger.State{}, false, apperrors.ErrDatabase)

	_, err := ledger.NewLedgerService(context.Background(), store, event.NewNoopPublisher(testLogger()), testLogger())
	assert.True(t, errors.Is(err, apperrors.ErrDatabase))
	store.AssertExpectations(t)
}

func TestRecordRepaymentPublishesEvents(t *testing.T) {
	ctx := context.Background()
	store := new(MockRecordStore)
	publisher := new(MockEventPublisher)

	store.On("Load", mock.Anything).Return(ledger.SeedState(), true, nil)
	store.On("Save", mock.Anything, mock.AnythingOfType("ledger.State")).Return(nil)
	publisher.On("PublishRepaymentRecorded", mock.Anything, mock.MatchedBy(func(e event.RepaymentRecordedEvent) bool {
		return e.LoanID == 101 && e.Accepted == "1000.00" && e.Clamped
	})).Return(errors.New("broker down"))
	publisher.On("PublishCustomerStatusChanged", mock.Anything, mock.AnythingOfType("event.CustomerStatusChangedEvent")).Return(nil).Maybe()

	svc, err := ledger.NewLedgerService(ctx, store, publisher, testLogger())
	require.NoError(t, err)

	receipt, err := svc.RecordRepayment(ctx, 101, decimal.NewFromInt(5000), time.Now())
	require.NoError(t, err, "publish failures must not fail the repayment")
	assert.True(t, receipt.Clamped())
	assert.True(t, receipt.Remaining.IsZero())

	loan, err := svc.GetLoan(ctx, 101)
	require.NoError(t, err)
	assert.True(t, ledger.RemainingBalance(loan).IsZero())

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := new(MockRecordStore)
	store.On("Load", mock.Anything).Return(ledger.SeedState(), true, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrDatabase)

	svc := newService(t, store)

	_, err := svc.AddCustomer(ctx, "Meera Nair", "")
	assert.True(t, errors.Is(err, apperrors.ErrDatabase))

	snapshot, _ := svc.Snapshot(ctx)
	assert.Len(t, snapshot.Customers, 10)
}

func TestRejectedMutationDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{state: ledger.SeedState(), found: true}
	svc := newService(t, store)

	_, err := svc.AddLoan(ctx, 404, "Rice", decimal.NewFromInt(10), time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.RecordRepayment(ctx, 101, decimal.NewFromInt(-5), time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	assert.Equal(t, 0, store.saves)
}

func TestAddCustomerAndLoan(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{state: ledger.SeedState(), found: true}
	svc := newService(t, store)

	c, err := svc.AddCustomer(ctx, "Meera Nair", "meera@shop.com")
	require.NoError(t, err)

	due := time.Now().AddDate(0, 1, 0)
	loan, err := svc.AddLoan(ctx, c.ID, "Rice", decimal.RequireFromString("450.50"), due)
	require.NoError(t, err)
	assert.Equal(t, c.ID, loan.CustomerID)

	detail, err := svc.GetCustomerDetail(ctx, c.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusUpToDate, detail.Summary.Status)
	assert.True(t, detail.Summary.OutstandingBalance.Equal(decimal.RequireFromString("450.50")))

	summaries, err := svc.ListCustomerSummaries(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, summaries, 11)
	assert.Equal(t, 2, store.saves)
}

func TestConcurrentRepaymentsNeverOverpay(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{state: ledger.SeedState(), found: true}
	svc := newService(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RecordRepayment(ctx, 101, decimal.NewFromInt(75), time.Now())
		}()
	}
	wg.Wait()

	loan, err := svc.GetLoan(ctx, 101)
	require.NoError(t, err)
	assert.True(t, ledger.RemainingBalance(loan).IsZero())
	assert.True(t, ledger.TotalRepaid(loan).Equal(loan.Principal))

	saved, _, _ := store.Load(ctx)
	require.NoError(t, saved.Validate())
}

func owingState() ledger.State {
	return ledger.State{
		Customers: []ledger.Customer{{ID: 1, Name: "Aarav Sharma"}},
		Loans: []ledger.Loan{
			{ID: 101, CustomerID: 1, Item: "Groceries", Principal: decimal.NewFromInt(100), DueDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestRefreshStatusesSkipsTransitionsReportedByMutations(t *testing.T) {
	ctx := context.Background()
	publisher := new(MockEventPublisher)
	publisher.On("PublishRepaymentRecorded", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishCustomerStatusChanged", mock.Anything, mock.MatchedBy(func(e event.CustomerStatusChangedEvent) bool {
		return e.OldStatus == "Up-to-date" && e.NewStatus == "Paid Up" && e.OutstandingBalance == "0.00"
	})).Return(nil).Once()

	svc, err := ledger.NewLedgerService(ctx, &memoryStore{state: owingState(), found: true}, publisher, testLogger())
	require.NoError(t, err)

	_, err = svc.RecordRepayment(ctx, 101, decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)

	summaries, transitions, err := svc.RefreshStatuses(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, transitions)
	require.Len(t, summaries, 1)
	assert.Equal(t, ledger.StatusPaidUp, summaries[0].Summary.Status)
	publisher.AssertExpectations(t)
}

func TestRefreshStatusesReportsCalendarTransitionOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &memoryStore{state: owingState(), found: true})
	later := time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC)

	_, transitions, err := svc.RefreshStatuses(ctx, later)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, int64(1), transitions[0].CustomerID)
	assert.Equal(t, ledger.StatusUpToDate, transitions[0].Previous)
	assert.Equal(t, ledger.StatusOverdue, transitions[0].Summary.Status)

	_, transitions, err = svc.RefreshStatuses(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, transitions)
}
