package session

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Guard accepts exactly one identifier/secret pair. It stands in for real authentication.
type Guard interface {
	Authenticate(identifier, secret string) bool
}

type credentialGuard struct {
	identifier string
	secretHash []byte
	logger     *slog.Logger
}

// NewGuard hashes secret once so the plain value does not stay in memory.
func NewGuard(identifier, secret string, logger *slog.Logger) (Guard, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("session identifier and secret must both be configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash session secret: %w", err)
	}
	return &credentialGuard{
		identifier: strings.ToLower(identifier),
		secretHash: hash,
		logger:     logger.With("component", "SessionGuard"),
	}, nil
}

func (g *credentialGuard) Authenticate(identifier, secret string) bool {
	given := strings.ToLower(strings.TrimSpace(identifier))
	idMatch := subtle.ConstantTimeCompare([]byte(given), []byte(g.identifier)) == 1
	secretErr := bcrypt.CompareHashAndPassword(g.secretHash, []byte(secret))

	if !idMatch || secretErr != nil {
		g.logger.Warn("Login rejected", "identifier", given)
		return false
	}
	g.logger.Info("Login accepted", "identifier", given)
	return true
}
