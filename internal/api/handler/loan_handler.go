package handler

import (
	"credit-ledger/internal/api/handler/dto"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/view"
	"credit-ledger/internal/pkg/apperrors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type LoanHandler struct {
	service ledger.LedgerService
	now     func() time.Time
	logger  *slog.Logger
}

func NewLoanHandler(s ledger.LedgerService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	return &LoanHandler{
		service: s,
		now:     time.Now,
		logger:  l.With("component", "LoanHandler"),
	}
}

// CreateLoan records a credit sale for a customer.
//
// @Summary Add a loan
// @Description Records an item sold on credit with its amount and due date.
// @Tags Loans
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID"
// @Param request body dto.CreateLoanRequest true "Loan to add"
// @Success 201 {object} dto.LoanCreatedResponse "Loan added"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	customerID, err := getIDFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	amount, dueDate, err := req.Parse()
	if err != nil {
		respondError(w, err)
		return
	}

	created, err := h.service.AddLoan(r.Context(), customerID, req.ItemSold, amount, dueDate)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Location", "/loans/"+strconv.FormatInt(created.ID, 10))
	respondJSON(w, http.StatusCreated, dto.LoanCreatedResponse{
		Loan: dto.NewLoanResponse(dto.NewLoanPosition(created, h.now())),
		Next: dto.NewViewRef(view.Next(view.AddLoan{CustomerID: customerID})),
	})
}

// GetLoan retrieves a loan with its repayments.
//
// @Summary Retrieve loan details
// @Description Returns the loan, its repayments, the remaining balance and whether it is overdue today.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan details"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(dto.NewLoanPosition(loan, h.now())))
}

// RecordRepayment applies a payment to a loan.
//
// @Summary Record a repayment
// @Description Records a payment against the loan. An amount above the remaining balance is reduced to the balance and the response is marked clamped.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.RecordRepaymentRequest true "Repayment"
// @Success 200 {object} dto.RepaymentReceiptResponse "Repayment recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid amount, missing date, or loan already paid"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/repayments [post]
// @Security BearerAuth
func (h *LoanHandler) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.RecordRepaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	amount, date, err := req.Parse()
	if err != nil {
		respondError(w, err)
		return
	}

	receipt, err := h.service.RecordRepayment(r.Context(), loanID, amount, date)
	if err != nil {
		respondError(w, err)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Loan vanished after repayment", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	next := view.Next(view.RecordRepayment{CustomerID: loan.CustomerID, LoanID: loanID})
	respondJSON(w, http.StatusOK, dto.NewRepaymentReceiptResponse(receipt, next))
}
