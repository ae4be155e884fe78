package handler

import (
	"bytes"
	"credit-ledger/internal/api/handler/dto"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func customerRouter(svc ledger.LedgerService) *chi.Mux {
	h := NewCustomerHandler(svc, discardLogger())
	h.now = func() time.Time { return testToday }

	r := chi.NewRouter()
	r.Get("/customers", h.ListCustomers)
	r.Post("/customers", h.CreateCustomer)
	r.Get("/customers/{customerID}", h.GetCustomer)
	r.Get("/customers/{customerID}/statement.pdf", h.GetStatement)
	return r
}

func TestCustomerHandler_ListCustomers(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("ListCustomerSummaries", mock.Anything, testToday).Return(ledger.Dashboard(ledger.SeedState(), testToday), nil)

	rec := serve(customerRouter(svc), httptest.NewRequest(http.MethodGet, "/customers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []dto.CustomerSummaryResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp, 10)

	first := resp[0]
	assert.Equal(t, "Aarav Sharma", first.Customer.Name)
	assert.Equal(t, "Up-to-date", first.Summary.Status)
	assert.Equal(t, "1600.00", first.Summary.OutstandingBalance)
	require.NotNil(t, first.Summary.NextDueDate)
	assert.Equal(t, "2025-05-15", *first.Summary.NextDueDate)
	assert.Equal(t, "₹1600.00", first.Summary.Display.OutstandingBalance)
	assert.Equal(t, "15 May 2025", first.Summary.Display.NextDueDate)

	paidUp := resp[2]
	assert.Equal(t, "Paid Up", paidUp.Summary.Status)
	assert.Nil(t, paidUp.Summary.NextDueDate)
	assert.Equal(t, "N/A", paidUp.Summary.Display.NextDueDate)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_ListCustomersError(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("ListCustomerSummaries", mock.Anything, testToday).Return(nil, errors.New("boom"))

	rec := serve(customerRouter(svc), httptest.NewRequest(http.MethodGet, "/customers", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCustomerHandler_CreateCustomer(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("AddCustomer", mock.Anything, "Meera Nair", "").Return(ledger.Customer{ID: 11, Name: "Meera Nair"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/customers", jsonBody(t, dto.CreateCustomerRequest{Name: "Meera Nair"}))
		rec := serve(customerRouter(svc), req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/customers/11", rec.Header().Get("Location"))
		var resp dto.CustomerCreatedResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "11", resp.Customer.ID)
		assert.Equal(t, "dashboard", resp.Next.Name)
		svc.AssertExpectations(t)
	})

	t.Run("blank name", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("AddCustomer", mock.Anything, "  ", "x@shop.com").
			Return(ledger.Customer{}, apperrors.NewValidationError("name", "name is required"))

		req := httptest.NewRequest(http.MethodPost, "/customers", jsonBody(t, dto.CreateCustomerRequest{Name: "  ", Email: "x@shop.com"}))
		rec := serve(customerRouter(svc), req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "name", resp.Error.Field)
		assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockLedgerService)
		req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewBufferString("{"))
		rec := serve(customerRouter(svc), req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "AddCustomer", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCustomerHandler_GetCustomer(t *testing.T) {
	detail, err := ledger.Detail(ledger.SeedState(), 2, testToday)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("GetCustomerDetail", mock.Anything, int64(2), testToday).Return(detail, nil)

		rec := serve(customerRouter(svc), httptest.NewRequest(http.MethodGet, "/customers/2", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerDetailResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Priya Singh", resp.Customer.Name)
		assert.Equal(t, "Overdue", resp.Summary.Status)
		require.Len(t, resp.Loans, 2)
		assert.Equal(t, "202", resp.Loans[0].ID, "latest due date first")
		assert.Equal(t, "500.00", resp.Loans[1].Remaining)
		assert.True(t, resp.Loans[1].Overdue)
		assert.Len(t, resp.Loans[1].Repayments, 2)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("GetCustomerDetail", mock.Anything, int64(99), testToday).
			Return(ledger.CustomerDetail{}, apperrors.NewNotFoundError("customer", 99))

		rec := serve(customerRouter(svc), httptest.NewRequest(http.MethodGet, "/customers/99", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := serve(customerRouter(new(MockLedgerService)), httptest.NewRequest(http.MethodGet, "/customers/abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCustomerHandler_GetStatement(t *testing.T) {
	detail, err := ledger.Detail(ledger.SeedState(), 1, testToday)
	require.NoError(t, err)
	svc := new(MockLedgerService)
	svc.On("GetCustomerDetail", mock.Anything, int64(1), testToday).Return(detail, nil)

	rec := serve(customerRouter(svc), httptest.NewRequest(http.MethodGet, "/customers/1/statement.pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement-1.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}
