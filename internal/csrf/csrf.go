// Package csrf provides one-time CSRF tokens for the linking forms
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wrale/alexa-media-skill/internal/tokenstore"
)

var (
	// ErrInvalidToken indicates a missing, forged or already used token
	ErrInvalidToken = errors.New("invalid csrf token")

	// ErrTokenExpired indicates the token is unknown to the store, usually because it expired
	ErrTokenExpired = errors.New("csrf token expired")
)

// Manager issues signed tokens and consumes them on validation
type Manager struct {
	store  tokenstore.Store[struct{}]
	secret []byte
}

// NewManager creates a CSRF manager over store. The store decides TTL and entropy.
func NewManager(store tokenstore.Store[struct{}], secret []byte) *Manager {
	return &Manager{
		store:  store,
		secret: secret,
	}
}

// GenerateToken creates and stores a new token
func (m *Manager) GenerateToken(ctx context.Context) (string, error) {
	token, err := m.store.Issue(ctx, struct{}{})
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token + "." + m.sign(token), nil
}

// ValidateToken checks the signature and consumes the stored token.
// A token validates at most once.
func (m *Manager) ValidateToken(ctx context.Context, fullToken string) error {
	token, sig, ok := strings.Cut(fullToken, ".")
	if !ok || token == "" || sig == "" {
		return ErrInvalidToken
	}

	actual, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ErrInvalidToken
	}
	expected, _ := base64.RawURLEncoding.DecodeString(m.sign(token))
	if !hmac.Equal(expected, actual) {
		return ErrInvalidToken
	}

	_, valid, err := m.store.Consume(ctx, token)
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	if !valid {
		return ErrTokenExpired
	}
	return nil
}

// CheckHealth verifies the CSRF store is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(token string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
