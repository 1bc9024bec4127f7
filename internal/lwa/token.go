package lwa

import (
	"strings"
	"time"
)

// Scope is a skill management API permission
type Scope string

const (
	ScopeSkillsRead      Scope = "alexa::ask:skills:read"
	ScopeSkillsReadWrite Scope = "alexa::ask:skills:readwrite"
	ScopeModelsRead      Scope = "alexa::ask:models:read"
	ScopeModelsReadWrite Scope = "alexa::ask:models:readwrite"
)

// DeviceFlowScopes are requested when a user links a management account
var DeviceFlowScopes = []Scope{ScopeSkillsReadWrite, ScopeModelsReadWrite}

func joinScopes(scopes []Scope) string {
	s := make([]string, len(scopes))
	for i, sc := range scopes {
		s[i] = string(sc)
	}
	return strings.Join(s, " ")
}

// Token is an access/refresh token pair with an absolute expiry.
// A refresh always yields a new Token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token can be used at now.
// A zero expiry means none is tracked.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// CanRefresh reports whether the token carries a refresh token
func (t *Token) CanRefresh() bool {
	return t != nil && t.RefreshToken != ""
}

// PendingAuthorization is an initiated device authorization awaiting user approval
type PendingAuthorization struct {
	UserCode        string        `json:"user_code"`
	DeviceCode      string        `json:"device_code"`
	VerificationURI string        `json:"verification_uri"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Interval        time.Duration `json:"interval"`
}
