package handler

import (
	"bytes"
	"context"
	"credit-ledger/internal/domain/ledger"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
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
	if s, ok := args.Get(0).([]ledger.CustomerSummary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
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

var testToday = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), "body: %s", rec.Body.String())
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
