// Package tokenstore provides short-lived, keyed, expiring tokens
package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCollision indicates every generated token was already taken
	ErrCollision = errors.New("token collision")

	// ErrEmptyToken indicates an empty token was supplied
	ErrEmptyToken = errors.New("empty token")
)

const maxIssueAttempts = 8

// Record is a stored token with its payload
type Record[T any] struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Payload   T         `json:"payload"`
}

// Valid reports whether the record is still usable at now.
// The expiry instant itself is already expired.
func (r Record[T]) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Store holds tokens keyed by their random value
type Store[T any] interface {
	// Issue creates a unique token carrying payload
	Issue(ctx context.Context, payload T) (string, error)

	// Validate reports whether token exists and has not expired
	Validate(ctx context.Context, token string) (bool, error)

	// Get returns the payload without consuming the token
	Get(ctx context.Context, token string) (T, bool, error)

	// Consume atomically returns the payload of a live token and removes it.
	// Of concurrent callers at most one sees ok.
	Consume(ctx context.Context, token string) (T, bool, error)

	// Remove invalidates a token
	Remove(ctx context.Context, token string) error

	// SweepExpired purges expired tokens and returns how many were removed
	SweepExpired(ctx context.Context) (int, error)

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Option configures a store
type Option func(*options)

type options struct {
	ttl        time.Duration
	tokenBytes int
	now        func() time.Time
	random     func([]byte) (int, error)
}

func defaultOptions() options {
	return options{
		ttl:        10 * time.Minute,
		tokenBytes: 32,
		now:        time.Now,
		random:     rand.Read,
	}
}

// WithTTL sets how long issued tokens live
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithTokenBytes sets the number of random bytes per token
func WithTokenBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.tokenBytes = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithRandom overrides the random source
func WithRandom(r func([]byte) (int, error)) Option {
	return func(o *options) {
		o.random = r
	}
}

func (o options) generate() (string, error) {
	b := make([]byte, o.tokenBytes)
	if _, err := o.random(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
