// Package lwa is a client for the Login with Amazon identity service:
// device authorization, token polling and refresh.
package lwa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public identity service
	DefaultBaseURL = "https://api.amazon.com"

	codePairPath = "/auth/o2/create/codepair"
	tokenPath    = "/auth/o2/token"

	defaultTimeout  = 10 * time.Second
	minPollInterval = time.Second
	slowDownStep    = 5 * time.Second
)

// Client talks to the identity service
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different identity service
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for all calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock overrides the time source used for expiry computations
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates an identity service client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate starts a device authorization for clientID.
// The code pair endpoint wants response_type=device_code rather than the
// RFC 8628 request oauth2.Config.DeviceAuth sends.
func (c *Client) Initiate(ctx context.Context, clientID string, scopes []Scope) (*PendingAuthorization, error) {
	const op = "initiate"

	form := url.Values{
		"response_type": {"device_code"},
		"client_id":     {clientID},
		"scope":         {joinScopes(scopes)},
	}
	body, err := c.postForm(ctx, op, codePairPath, form)
	if err != nil {
		return nil, err
	}

	var resp struct {
		UserCode        string `json:"user_code"`
		DeviceCode      string `json:"device_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: op, Err: err}
	}
	if resp.UserCode == "" || resp.DeviceCode == "" || resp.VerificationURI == "" || resp.ExpiresIn <= 0 {
		return nil, &Error{Kind: KindMalformed, Op: op, Err: errors.New("missing required fields")}
	}

	interval := time.Duration(resp.Interval) * time.Second
	if interval < minPollInterval {
		interval = minPollInterval
	}

	return &PendingAuthorization{
		UserCode:        resp.UserCode,
		DeviceCode:      resp.DeviceCode,
		VerificationURI: resp.VerificationURI,
		ExpiresAt:       c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Interval:        interval,
	}, nil
}

// Poll blocks until the user approves the pending authorization, it expires,
// or ctx is canceled. Requests are paced at the pending interval.
func (c *Client) Poll(ctx context.Context, pending *PendingAuthorization) (*Token, error) {
	interval := pending.Interval
	if interval <= 0 {
		interval = minPollInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	// the first token is spent so the user gets one interval before the first poll
	limiter.Allow()

	for {
		if !c.now().Before(pending.ExpiresAt) {
			return nil, ErrExpired
		}

		waitCtx, cancel := context.WithDeadline(ctx, pending.ExpiresAt)
		err := limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrExpired
		}

		tok, err := c.requestDeviceToken(ctx, pending)
		switch {
		case errors.Is(err, errPending):
			continue
		case errors.Is(err, errSlowDown):
			interval += slowDownStep
			limiter.SetLimit(rate.Every(interval))
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		return tok, nil
	}
}

func (c *Client) requestDeviceToken(ctx context.Context, pending *PendingAuthorization) (*Token, error) {
	const op = "poll"

	// not the RFC 8628 grant type, and user_code is required
	form := url.Values{
		"grant_type":  {"device_code"},
		"device_code": {pending.DeviceCode},
		"user_code":   {pending.UserCode},
	}
	body, err := c.postForm(ctx, op, tokenPath, form)
	if err != nil {
		var lerr *Error
		if errors.As(err, &lerr) {
			switch lerr.Code {
			case "authorization_pending":
				return nil, errPending
			case "slow_down":
				return nil, errSlowDown
			case "expired_token":
				return nil, ErrExpired
			}
		}
		return nil, err
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: op, Err: err}
	}
	if resp.AccessToken == "" {
		return nil, &Error{Kind: KindMalformed, Op: op, Err: errors.New("missing access_token")}
	}

	tok := &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if resp.ExpiresIn > 0 {
		tok.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// Refresh exchanges the refresh token in tok for a new Token
func (c *Client) Refresh(ctx context.Context, tok *Token, clientID, clientSecret string) (*Token, error) {
	const op = "refresh"

	if !tok.CanRefresh() || clientID == "" {
		return nil, &Error{Kind: KindUnauthorized, Op: op, Err: ErrMissingCredentials}
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			e := &Error{Kind: KindNetwork, Op: op, Code: rerr.ErrorCode, Err: err}
			if rerr.Response != nil {
				e.Status = rerr.Response.StatusCode
			}
			if e.Status == http.StatusUnauthorized || isCredentialError(rerr.ErrorCode) {
				e.Kind = KindUnauthorized
			}
			return nil, e
		}
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	if fresh.AccessToken == "" {
		return nil, &Error{Kind: KindMalformed, Op: op, Err: errors.New("missing access_token")}
	}

	return &Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		TokenType:    fresh.TokenType,
		ExpiresAt:    fresh.Expiry,
	}, nil
}

func isCredentialError(code string) bool {
	switch code {
	case "invalid_grant", "invalid_client", "unauthorized_client":
		return true
	}
	return false
}

// postForm sends a form POST and returns the body of a 2xx response.
// Any other status becomes an *Error carrying the OAuth error code.
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &errResp)

		e := &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Code: errResp.Error}
		if errResp.ErrorDescription != "" {
			e.Err = errors.New(errResp.ErrorDescription)
		}
		if resp.StatusCode == http.StatusUnauthorized || isCredentialError(errResp.Error) || errResp.Error == "access_denied" {
			e.Kind = KindUnauthorized
		}
		return nil, e
	}

	return body, nil
}
