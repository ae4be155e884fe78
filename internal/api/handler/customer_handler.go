package handler

import (
	"bytes"
	"credit-ledger/internal/api/handler/dto"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/view"
	"credit-ledger/internal/pkg/apperrors"
	"credit-ledger/internal/report"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type CustomerHandler struct {
	service ledger.LedgerService
	now     func() time.Time
	logger  *slog.Logger
}

func NewCustomerHandler(s ledger.LedgerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		now:     time.Now,
		logger:  l.With("component", "CustomerHandler"),
	}
}

// ListCustomers handles GET /customers
// @Summary Dashboard
// @Description Lists every customer with derived status, outstanding balance and next due date.
// @Tags Customers
// @Produce json
// @Success 200 {array} dto.CustomerSummaryResponse "Customer summaries"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
// @Security BearerAuth
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListCustomerSummaries(r.Context(), h.now())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list customers", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerSummaryResponses(summaries))
}

// CreateCustomer handles POST /customers
// @Summary Add a customer
// @Description Adds a customer. The name is required; the email is optional.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer to add"
// @Success 201 {object} dto.CustomerCreatedResponse "Customer added"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.AddCustomer(r.Context(), req.Name, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Location", "/customers/"+strconv.FormatInt(created.ID, 10))
	respondJSON(w, http.StatusCreated, dto.CustomerCreatedResponse{
		Customer: dto.NewCustomerResponse(created),
		Next:     dto.NewViewRef(view.Next(view.AddCustomer{})),
	})
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Customer detail
// @Description Returns the customer's status summary and loans, latest due date first.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} dto.CustomerDetailResponse "Customer detail"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getIDFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	detail, err := h.service.GetCustomerDetail(r.Context(), customerID, h.now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerDetailResponse(detail))
}

// GetStatement handles GET /customers/{customerID}/statement.pdf
// @Summary Download statement
// @Description Renders the customer's loans and repayments as a PDF statement.
// @Tags Customers
// @Produce application/pdf
// @Param customerID path int true "Customer ID"
// @Success 200 {file} file "PDF statement"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/statement.pdf [get]
// @Security BearerAuth
func (h *CustomerHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	customerID, err := getIDFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	now := h.now()
	detail, err := h.service.GetCustomerDetail(r.Context(), customerID, now)
	if err != nil {
		respondError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteStatement(&buf, detail, now); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to render statement", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %w", apperrors.ErrInternalServer, err))
		return
	}

	h.logger.InfoContext(r.Context(), "Statement generated", slog.Int64("customerID", customerID), slog.Int("bytes", buf.Len()))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%d.pdf"`, customerID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
