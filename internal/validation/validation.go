// Package validation checks user-supplied linking and skill parameters
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Invocation name limits
const (
	MinInvocationWords  = 2
	MaxInvocationLength = 50
)

// RedirectPrefixes are the account linking status pages the voice platform
// redirects back to, one per region
var RedirectPrefixes = []string{
	"https://alexa.amazon.co.jp/spa/skill/account-linking-status.html?vendorId=",
	"https://layla.amazon.com/spa/skill/account-linking-status.html?vendorId=",
	"https://pitangui.amazon.com/spa/skill/account-linking-status.html?vendorId=",
}

// Lowercase letters, spaces, periods and apostrophes only
var invocationRegex = regexp.MustCompile(`^[a-z][a-z.' ]*[a-z.]$`)

// ValidationError represents a rejected parameter
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateRedirectURI checks uri against the allowed status pages
func ValidateRedirectURI(uri string) error {
	for _, prefix := range RedirectPrefixes {
		if strings.HasPrefix(uri, prefix) && len(uri) > len(prefix) {
			return nil
		}
	}
	return &ValidationError{
		Field:   "redirect_uri",
		Value:   uri,
		Message: "not an account linking status page",
	}
}

// ValidateClientID checks that a linking request names the configured client
func ValidateClientID(got, want string) error {
	if want == "" || got != want {
		return &ValidationError{
			Field:   "client_id",
			Value:   got,
			Message: "unknown client",
		}
	}
	return nil
}

// NormalizeInvocationName lowercases name and collapses whitespace
func NormalizeInvocationName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ValidateInvocationName checks a normalized invocation name
func ValidateInvocationName(name string) error {
	if len(strings.Fields(name)) < MinInvocationWords {
		return &ValidationError{
			Field:   "invocation name",
			Value:   name,
			Message: fmt.Sprintf("must have at least %d words", MinInvocationWords),
		}
	}
	if len(name) > MaxInvocationLength {
		return &ValidationError{
			Field:   "invocation name",
			Value:   name,
			Message: fmt.Sprintf("must be at most %d characters", MaxInvocationLength),
		}
	}
	if !invocationRegex.MatchString(name) {
		return &ValidationError{
			Field:   "invocation name",
			Value:   name,
			Message: "may only contain lowercase letters, spaces, periods and apostrophes",
		}
	}
	return nil
}

// ValidateServerAddress checks that addr is an absolute http(s) URL the
// voice platform can reach
func ValidateServerAddress(addr string) error {
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: "server address", Value: addr, Message: "must be an absolute URL"}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Field: "server address", Value: addr, Message: "scheme must be http or https"}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return &ValidationError{Field: "server address", Value: addr, Message: "must not carry a query or fragment"}
	}
	return nil
}
