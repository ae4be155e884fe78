package handler

import (
	"credit-ledger/internal/api/handler/dto"
	"credit-ledger/internal/api/middleware"
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/domain/view"
	"credit-ledger/internal/pkg/apperrors"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type ViewHandler struct {
	service ledger.LedgerService
	now     func() time.Time
	logger  *slog.Logger
}

func NewViewHandler(s ledger.LedgerService, l *slog.Logger) *ViewHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	return &ViewHandler{
		service: s,
		now:     time.Now,
		logger:  l.With("component", "ViewHandler"),
	}
}

// GetView resolves one of the shop's pages.
//
// @Summary Resolve a page
// @Description Returns the page to show for a view name and its ids. Signed-out callers always get the login view. A view naming a missing customer or loan falls back to the dashboard with a notice.
// @Tags Views
// @Produce json
// @Param view path string true "View name" Enums(login, dashboard, customerDetail, addCustomer, addLoan, recordRepayment)
// @Param customerId query int false "Customer ID for customerDetail, addLoan and recordRepayment"
// @Param loanId query int false "Loan ID for recordRepayment"
// @Success 200 {object} dto.PageResponse "Resolved page"
// @Failure 400 {object} dto.ErrorResponse "Unknown view or missing ids"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /views/{view} [get]
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	customerID, err := optionalIDQuery(r, "customerId")
	if err != nil {
		respondError(w, err)
		return
	}
	loanID, err := optionalIDQuery(r, "loanId")
	if err != nil {
		respondError(w, err)
		return
	}
	v, err := view.Parse(chi.URLParam(r, "view"), customerID, loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	state, err := h.service.Snapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	page, err := view.Navigate(state, sess.Authenticated, v, h.now())
	var notice string
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		h.logger.InfoContext(r.Context(), "View target missing, showing dashboard", slog.String("view", v.Name()), slog.Any("error", err))
		notice = err.Error()
	case err != nil:
		respondError(w, err)
		return
	}

	resp := dto.NewPageResponse(page)
	resp.Notice = notice
	respondJSON(w, http.StatusOK, resp)
}
