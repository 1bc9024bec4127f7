// Package link serves the browser pages of account and device linking
package link

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/linking"
	"github.com/wrale/alexa-media-skill/internal/templates"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

// AccountFlow is the account linking form logic
type AccountFlow interface {
	RenderForm(ctx context.Context, clientID, redirectURI, state string) (*templates.LinkingData, error)
	Submit(ctx context.Context, req linking.SubmitRequest) (string, error)
}

// DeviceFlow starts device grants for link tokens
type DeviceFlow interface {
	Page(ctx context.Context, token string) (*templates.DeviceLinkData, error)
}

// Handler renders the linking pages
type Handler struct {
	accounts  AccountFlow
	devices   DeviceFlow
	templates *templates.Templates
	logger    *log.Logger
}

// New creates the linking page handler
func New(accounts AccountFlow, devices DeviceFlow, tmpl *templates.Templates, logger *log.Logger) *Handler {
	return &Handler{
		accounts:  accounts,
		devices:   devices,
		templates: tmpl,
		logger:    logger,
	}
}

// AccountForm shows the media server sign-in form
func (h *Handler) AccountForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := h.accounts.RenderForm(r.Context(), q.Get("client_id"), q.Get("redirect_uri"), q.Get("state"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	data.Error = q.Get("error")

	if err := h.templates.RenderAccountLinking(w, *data); err != nil {
		h.logger.Error("rendering account linking form", "err", err)
	}
}

// AccountSubmit checks the posted credentials and redirects the browser
func (h *Handler) AccountSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Invalid Request", "The form could not be read.", "")
		return
	}

	req := linking.SubmitRequest{
		CSRFToken:   r.PostForm.Get("csrf_token"),
		ClientID:    r.PostForm.Get("client_id"),
		RedirectURI: r.PostForm.Get("redirect_uri"),
		State:       r.PostForm.Get("state"),
		Username:    r.PostForm.Get("username"),
		Password:    r.PostForm.Get("password"),
	}

	target, err := h.accounts.Submit(r.Context(), req)
	if err != nil {
		retry := r.URL.Path + "?" + url.Values{
			"client_id":    {req.ClientID},
			"redirect_uri": {req.RedirectURI},
			"state":        {req.State},
		}.Encode()
		h.fail(w, r, err, retry)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// DevicePage shows the device grant user code for a link token
func (h *Handler) DevicePage(w http.ResponseWriter, r *http.Request) {
	data, err := h.devices.Page(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	if err := h.templates.RenderDeviceLink(w, *data); err != nil {
		h.logger.Error("rendering device link page", "err", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, retryURL string) {
	var verr *validation.ValidationError
	switch {
	case errors.Is(err, linking.ErrInvalidCSRF):
		h.renderError(w, http.StatusBadRequest, "Session Expired",
			"The sign-in form expired. Please try again.", retryURL)
	case errors.As(err, &verr):
		h.renderError(w, http.StatusBadRequest, "Invalid Request", verr.Error(), "")
	case errors.Is(err, linking.ErrLinkExpired):
		h.renderError(w, http.StatusNotFound, "Link Expired",
			"This link is no longer valid. Ask your administrator for a new one.", "")
	case errors.Is(err, linking.ErrNoClientCredentials):
		h.renderError(w, http.StatusServiceUnavailable, "Not Configured",
			"Skill management credentials are not configured on this server.", "")
	default:
		h.logger.Error("linking request failed", "path", r.URL.Path, "err", err)
		h.renderError(w, http.StatusInternalServerError, "Something Went Wrong",
			"The request could not be completed. Please try again later.", retryURL)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, status int, title, message, retryURL string) {
	err := h.templates.RenderError(w, templates.ErrorData{
		Title:    title,
		Message:  message,
		RetryURL: retryURL,
		Status:   status,
	})
	if err != nil {
		h.logger.Error("rendering error page", "err", err)
		http.Error(w, message, status)
	}
}
