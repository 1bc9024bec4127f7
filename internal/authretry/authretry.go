// Package authretry retries a management API call once after refreshing
// a stale credential.
package authretry

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/users"
)

// Refresher exchanges a refresh token for a new token
type Refresher interface {
	Refresh(ctx context.Context, tok *lwa.Token, clientID, clientSecret string) (*lwa.Token, error)
}

// ClientCredentials returns the OAuth client used for refreshes
type ClientCredentials func() (clientID, clientSecret string)

// Retrier refreshes per-user device tokens
type Retrier struct {
	users     users.Store
	refresher Refresher
	client    ClientCredentials
	logger    *log.Logger
}

// New creates a Retrier. Refreshed tokens are persisted to store.
func New(store users.Store, refresher Refresher, client ClientCredentials, logger *log.Logger) *Retrier {
	return &Retrier{
		users:     store,
		refresher: refresher,
		client:    client,
		logger:    logger,
	}
}

// Call runs op with the user's current record. If op fails with an
// unauthorized error and the user has a refresh token, the token is
// refreshed, persisted and op runs exactly once more.
func Call[T any](ctx context.Context, r *Retrier, userID string, op func(context.Context, *users.User) (T, error)) (T, error) {
	var zero T

	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return zero, err
	}

	res, err := op(ctx, u)
	if err == nil || !lwa.IsUnauthorized(err) {
		return res, err
	}
	if !u.DeviceToken.CanRefresh() {
		return res, err
	}

	updated, rerr := r.refresh(ctx, userID, u.DeviceToken)
	if rerr != nil {
		return zero, fmt.Errorf("refreshing device token: %w", rerr)
	}
	return op(ctx, updated)
}

// refresh replaces the user's device token under the user's lock. If another
// caller already replaced the stale token, that token is used as is.
func (r *Retrier) refresh(ctx context.Context, userID string, stale *lwa.Token) (*users.User, error) {
	return r.users.Update(ctx, userID, func(u *users.User) error {
		if u.DeviceToken != nil && u.DeviceToken.AccessToken != stale.AccessToken {
			return nil
		}
		if !u.DeviceToken.CanRefresh() {
			return lwa.ErrMissingCredentials
		}

		clientID, clientSecret := r.client()
		tok, err := r.refresher.Refresh(ctx, u.DeviceToken, clientID, clientSecret)
		if err != nil {
			return err
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = u.DeviceToken.RefreshToken
		}
		u.DeviceToken = tok
		if r.logger != nil {
			r.logger.Info("refreshed device token", "user", userID)
		}
		return nil
	})
}

// AppTokens is the plugin-level token source
type AppTokens interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}

// CallApp runs op with the plugin's access token, retrying once with a
// refreshed token when op reports unauthorized.
func CallApp[T any](ctx context.Context, tokens AppTokens, op func(ctx context.Context, accessToken string) (T, error)) (T, error) {
	var zero T

	tok, err := tokens.AccessToken(ctx)
	if err != nil {
		return zero, err
	}

	res, err := op(ctx, tok)
	if err == nil || !lwa.IsUnauthorized(err) {
		return res, err
	}

	tokens.Invalidate()
	tok, rerr := tokens.AccessToken(ctx)
	if errors.Is(rerr, lwa.ErrMissingCredentials) {
		return res, err
	}
	if rerr != nil {
		return zero, fmt.Errorf("refreshing app token: %w", rerr)
	}
	return op(ctx, tok)
}
