package handler

import (
	"credit-ledger/internal/api/handler/dto"
	"credit-ledger/internal/config"
	"credit-ledger/internal/domain/session"
	"credit-ledger/internal/domain/view"
	"credit-ledger/internal/pkg/apperrors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AuthHandler struct {
	guard  session.Guard
	cfg    config.AuthConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthHandler(guard session.Guard, cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	if guard == nil {
		panic("session guard cannot be nil")
	}
	return &AuthHandler{
		guard:  guard,
		cfg:    cfg,
		now:    time.Now,
		logger: l.With("component", "AuthHandler"),
	}
}

// Login exchanges the shopkeeper credentials for a bearer token.
//
// @Summary Sign in
// @Description Checks the configured shopkeeper email and password and returns a bearer token for the other endpoints.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Shopkeeper credentials"
// @Success 200 {object} dto.LoginResponse "Signed in"
// @Failure 400 {object} dto.ErrorResponse "Missing email or password"
// @Failure 401 {object} dto.ErrorResponse "Invalid email or password"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode login request", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if !h.guard.Authenticate(req.Email, req.Password) {
		respondError(w, apperrors.ErrUnauthorized)
		return
	}

	now := h.now()
	expiresAt := now.Add(h.tokenTTL())
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToLower(strings.TrimSpace(req.Email)),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to sign token", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: failed to sign token: %w", apperrors.ErrInternalServer, err))
		return
	}

	respondJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt.UTC(),
		Next:      dto.NewViewRef(view.Next(view.Login{})),
	})
}

func (h *AuthHandler) tokenTTL() time.Duration {
	if h.cfg.TokenTTL > 0 {
		return h.cfg.TokenTTL
	}
	return 24 * time.Hour
}
