// Package linking connects voice accounts to media server accounts and
// management credentials to users.
package linking

import "errors"

var (
	// ErrInvalidCSRF indicates a form submitted with an unknown, used or forged token
	ErrInvalidCSRF = errors.New("invalid csrf token")

	// ErrLinkExpired indicates a device linking page token that is unknown or expired
	ErrLinkExpired = errors.New("device link expired")

	// ErrNoClientCredentials indicates no identity service client is configured
	ErrNoClientCredentials = errors.New("identity client credentials not configured")

	// ErrNoLinkage indicates the user has no skill linkage to act on
	ErrNoLinkage = errors.New("user has no skill linkage")
)
