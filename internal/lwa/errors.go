package lwa

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the identity service rejected the credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNetwork indicates a transport failure or an unexpected status
	ErrNetwork = errors.New("network error")

	// ErrMalformed indicates a successful response that could not be understood
	ErrMalformed = errors.New("malformed response")

	// ErrExpired indicates a device authorization ran past its expiry
	ErrExpired = errors.New("device authorization expired")

	// ErrMissingCredentials indicates no client id, secret or refresh token is configured
	ErrMissingCredentials = errors.New("missing credentials")

	errPending  = errors.New("authorization pending")
	errSlowDown = errors.New("slow down")
)

// Kind classifies an Error
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindUnauthorized
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindMalformed:
		return "malformed"
	default:
		return "network"
	}
}

// Error is returned by every identity service call
type Error struct {
	Kind   Kind
	Op     string
	Status int    // HTTP status, 0 on transport failure
	Code   string // OAuth error code, if any
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("lwa %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// IsUnauthorized reports whether err should trigger a credential refresh
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
