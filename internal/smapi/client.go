// Package smapi is a client for the skill management API
package smapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wrale/alexa-media-skill/internal/lwa"
)

const (
	DefaultBaseURL = "https://api.amazonalexa.com"
	defaultTimeout = 30 * time.Second

	stage = "development"
)

// ErrNotFound indicates a missing skill or resource
var ErrNotFound = errors.New("smapi: not found")

// Error is a non-2xx response
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("smapi %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Is lets a 401 match lwa.ErrUnauthorized and a 404 match ErrNotFound
func (e *Error) Is(target error) bool {
	switch target {
	case lwa.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Client calls the management API with a caller-supplied bearer token
type Client struct {
	http *resty.Client
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API host
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(u)
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetBaseURL(c.http.BaseURL)
	}
}

// NewClient creates a management API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(defaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetHeader("Accept", "application/json")
	return c
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &lwa.Error{Kind: lwa.KindNetwork, Op: "smapi " + op, Err: err}
	}
	if resp.IsError() {
		return &Error{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

type vendorsResponse struct {
	Vendors []Vendor `json:"vendors"`
}

// Vendors lists the developer accounts the token can act for
func (c *Client) Vendors(ctx context.Context, token string) ([]Vendor, error) {
	var out vendorsResponse
	resp, err := c.request(ctx, token).
		SetResult(&out).
		Get("/v1/vendors")
	if err := check("list vendors", resp, err); err != nil {
		return nil, err
	}
	return out.Vendors, nil
}

type manifestEnvelope struct {
	VendorID string    `json:"vendorId,omitempty"`
	Manifest *Manifest `json:"manifest"`
}

type createResponse struct {
	SkillID string `json:"skillId"`
}

// CreateSkill creates a development skill and returns its id. The build
// continues asynchronously.
func (c *Client) CreateSkill(ctx context.Context, token, vendorID string, m *Manifest) (string, error) {
	var out createResponse
	resp, err := c.request(ctx, token).
		SetBody(manifestEnvelope{VendorID: vendorID, Manifest: m}).
		SetResult(&out).
		Post("/v1/skills")
	if err := check("create skill", resp, err); err != nil {
		return "", err
	}
	if out.SkillID == "" {
		return "", &lwa.Error{Kind: lwa.KindMalformed, Op: "smapi create skill", Err: errors.New("no skill id")}
	}
	return out.SkillID, nil
}

// GetManifest loads the development manifest of a skill
func (c *Client) GetManifest(ctx context.Context, token, skillID string) (*Manifest, error) {
	var out manifestEnvelope
	resp, err := c.request(ctx, token).
		SetPathParams(map[string]string{"skillId": skillID, "stage": stage}).
		SetResult(&out).
		Get("/v1/skills/{skillId}/stages/{stage}/manifest")
	if err := check("get manifest", resp, err); err != nil {
		return nil, err
	}
	if out.Manifest == nil {
		return nil, &lwa.Error{Kind: lwa.KindMalformed, Op: "smapi get manifest", Err: errors.New("empty manifest")}
	}
	return out.Manifest, nil
}

// UpdateManifest replaces the development manifest and starts a rebuild
func (c *Client) UpdateManifest(ctx context.Context, token, skillID string, m *Manifest) error {
	resp, err := c.request(ctx, token).
		SetPathParams(map[string]string{"skillId": skillID, "stage": stage}).
		SetBody(manifestEnvelope{Manifest: m}).
		Put("/v1/skills/{skillId}/stages/{stage}/manifest")
	return check("update manifest", resp, err)
}

// DeleteSkill removes a skill
func (c *Client) DeleteSkill(ctx context.Context, token, skillID string) error {
	resp, err := c.request(ctx, token).
		SetPathParam("skillId", skillID).
		Delete("/v1/skills/{skillId}")
	return check("delete skill", resp, err)
}

// Status returns the latest build results of a skill
func (c *Client) Status(ctx context.Context, token, skillID string) (*SkillStatus, error) {
	var out SkillStatus
	resp, err := c.request(ctx, token).
		SetPathParam("skillId", skillID).
		SetResult(&out).
		Get("/v1/skills/{skillId}/status")
	if err := check("get status", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

type accountLinkingResponse struct {
	AccountLinking *AccountLinking `json:"accountLinkingResponse"`
}

type accountLinkingRequest struct {
	AccountLinking AccountLinking `json:"accountLinkingRequest"`
}

// GetAccountLinking returns the skill's linking setup. A skill without one
// yields ErrNotFound.
func (c *Client) GetAccountLinking(ctx context.Context, token, skillID string) (*AccountLinking, error) {
	var out accountLinkingResponse
	resp, err := c.request(ctx, token).
		SetPathParams(map[string]string{"skillId": skillID, "stage": stage}).
		SetResult(&out).
		Get("/v1/skills/{skillId}/stages/{stage}/accountLinkingClient")
	if err := check("get account linking", resp, err); err != nil {
		return nil, err
	}
	if out.AccountLinking == nil {
		return nil, ErrNotFound
	}
	return out.AccountLinking, nil
}

// UpdateAccountLinking replaces the skill's linking setup
func (c *Client) UpdateAccountLinking(ctx context.Context, token, skillID string, al AccountLinking) error {
	resp, err := c.request(ctx, token).
		SetPathParams(map[string]string{"skillId": skillID, "stage": stage}).
		SetBody(accountLinkingRequest{AccountLinking: al}).
		Put("/v1/skills/{skillId}/stages/{stage}/accountLinkingClient")
	return check("update account linking", resp, err)
}

// UpdateInteractionModel uploads the model for one locale. model is the
// complete {"interactionModel": ...} document.
func (c *Client) UpdateInteractionModel(ctx context.Context, token, skillID, locale string, model json.RawMessage) error {
	resp, err := c.request(ctx, token).
		SetPathParams(map[string]string{"skillId": skillID, "stage": stage, "locale": locale}).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(model)).
		Put("/v1/skills/{skillId}/stages/{stage}/interactionModel/locales/{locale}")
	return check("update interaction model", resp, err)
}
