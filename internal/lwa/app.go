package lwa

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AppCredentials are the plugin's own management API credentials
type AppCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	ExpiresAt    time.Time
}

// AppCredentialStore loads and persists AppCredentials
type AppCredentialStore interface {
	AppCredentials() AppCredentials
	SaveAppToken(tok Token) error
}

// AppTokenProvider caches the plugin's bearer token and refreshes it on expiry
type AppTokenProvider struct {
	client *Client
	store  AppCredentialStore
	now    func() time.Time

	mu     sync.Mutex
	cached *Token
	stale  bool
}

// NewAppTokenProvider creates a provider refreshing through client
func NewAppTokenProvider(client *Client, store AppCredentialStore) *AppTokenProvider {
	return &AppTokenProvider{
		client: client,
		store:  store,
		now:    client.now,
	}
}

// AccessToken returns a usable bearer token. The cached token is reused while
// now is before its expiry, otherwise it is refreshed and persisted.
func (p *AppTokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	creds := p.store.AppCredentials()
	if p.cached == nil && !p.stale && creds.AccessToken != "" {
		p.cached = &Token{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
			ExpiresAt:    creds.ExpiresAt,
		}
	}
	if p.cached.Valid(p.now()) {
		return p.cached.AccessToken, nil
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return "", &Error{Kind: KindUnauthorized, Op: "app token", Err: ErrMissingCredentials}
	}

	tok, err := p.client.Refresh(ctx, &Token{RefreshToken: creds.RefreshToken}, creds.ClientID, creds.ClientSecret)
	if err != nil {
		return "", err
	}
	if err := p.store.SaveAppToken(*tok); err != nil {
		return "", fmt.Errorf("persisting app token: %w", err)
	}

	p.cached = tok
	p.stale = false
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes
func (p *AppTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	p.stale = true
}
