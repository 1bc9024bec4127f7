package linking

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/templates"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

const msgInvalidCredentials = "invalid credentials"

// CSRF issues and consumes one-time form tokens
type CSRF interface {
	GenerateToken(ctx context.Context) (string, error)
	ValidateToken(ctx context.Context, token string) error
}

// AccountLinking implements the implicit grant the voice platform drives:
// the user signs in to the media server and is sent back with their user id
// as the access token.
type AccountLinking struct {
	csrf     CSRF
	auth     media.Authenticator
	users    users.Store
	clientID func() string
	formPath string
	logger   *log.Logger
}

// NewAccountLinking creates the flow. clientID reports the configured
// linking client; formPath is where a failed sign-in is sent back to.
func NewAccountLinking(csrf CSRF, auth media.Authenticator, store users.Store, clientID func() string, formPath string, logger *log.Logger) *AccountLinking {
	return &AccountLinking{
		csrf:     csrf,
		auth:     auth,
		users:    store,
		clientID: clientID,
		formPath: formPath,
		logger:   logger.With("component", "account-linking"),
	}
}

// RenderForm validates the request and returns the form fields with a fresh CSRF token
func (a *AccountLinking) RenderForm(ctx context.Context, clientID, redirectURI, state string) (*templates.LinkingData, error) {
	if err := a.validate(clientID, redirectURI); err != nil {
		return nil, err
	}

	token, err := a.csrf.GenerateToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("generating csrf token: %w", err)
	}

	return &templates.LinkingData{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       state,
		CSRFToken:   token,
	}, nil
}

// SubmitRequest is the posted sign-in form
type SubmitRequest struct {
	CSRFToken   string
	ClientID    string
	RedirectURI string
	State       string
	Username    string
	Password    string
}

// Submit checks the credentials and returns where to redirect the browser.
// Wrong credentials send the user back to the form with an error.
func (a *AccountLinking) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := a.csrf.ValidateToken(ctx, req.CSRFToken); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCSRF, err)
	}
	if err := a.validate(req.ClientID, req.RedirectURI); err != nil {
		return "", err
	}

	res, err := a.auth.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, media.ErrInvalidCredentials) {
		a.logger.Info("sign-in rejected", "username", req.Username)
		return a.formURL(req, msgInvalidCredentials), nil
	}
	if err != nil {
		return "", fmt.Errorf("authenticating: %w", err)
	}

	_, err = a.users.Upsert(ctx, res.UserID, func(u *users.User) error {
		u.ServerToken = res.AccessToken
		if u.Skill != nil && u.Skill.Status == users.StatusAccountLinkPending {
			u.Skill.Status = users.StatusReady
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("saving user: %w", err)
	}
	a.logger.Info("account linked", "user", res.UserID)

	fragment := "access_token=" + url.QueryEscape(res.UserID) +
		"&state=" + url.QueryEscape(req.State) +
		"&token_type=token"
	return req.RedirectURI + "#" + fragment, nil
}

func (a *AccountLinking) validate(clientID, redirectURI string) error {
	if err := validation.ValidateRedirectURI(redirectURI); err != nil {
		return err
	}
	return validation.ValidateClientID(clientID, a.clientID())
}

func (a *AccountLinking) formURL(req SubmitRequest, msg string) string {
	q := url.Values{
		"client_id":    {req.ClientID},
		"redirect_uri": {req.RedirectURI},
		"state":        {req.State},
		"error":        {msg},
	}
	return a.formPath + "?" + q.Encode()
}
