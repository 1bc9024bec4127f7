// Package templates renders the account linking and device linking pages.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed html/*.html
var content embed.FS

// TemplateError wraps a failure to execute a page template.
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates holds the parsed HTML pages.
type Templates struct {
	linking    *template.Template
	deviceLink *template.Template
	error      *template.Template
}

// LoadTemplates parses all embedded pages against the shared layout.
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.linking, err = template.ParseFS(content, "html/account_linking.html", "html/layout.html"); err != nil {
		return nil, fmt.Errorf("parsing account linking page: %w", err)
	}
	if t.deviceLink, err = template.ParseFS(content, "html/device_link.html", "html/layout.html"); err != nil {
		return nil, fmt.Errorf("parsing device link page: %w", err)
	}
	if t.error, err = template.ParseFS(content, "html/error.html", "html/layout.html"); err != nil {
		return nil, fmt.Errorf("parsing error page: %w", err)
	}

	return t, nil
}

// LinkingData holds the account linking form fields.
type LinkingData struct {
	ClientID    string
	RedirectURI string
	State       string
	CSRFToken   string
	Error       string
}

// RenderAccountLinking renders the media server sign-in form.
func (t *Templates) RenderAccountLinking(w http.ResponseWriter, data LinkingData) error {
	return t.render(w, t.linking, http.StatusOK, data)
}

// DeviceLinkData holds what the user needs to approve the device grant.
type DeviceLinkData struct {
	UserCode        string
	VerificationURI string
}

// RenderDeviceLink renders the user code page.
func (t *Templates) RenderDeviceLink(w http.ResponseWriter, data DeviceLinkData) error {
	return t.render(w, t.deviceLink, http.StatusOK, data)
}

// ErrorData holds data for the error page. Status defaults to 400.
type ErrorData struct {
	Title    string
	Message  string
	RetryURL string
	Status   int
}

// RenderError renders the error page.
func (t *Templates) RenderError(w http.ResponseWriter, data ErrorData) error {
	status := data.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	return t.render(w, t.error, status, data)
}

// RenderToString renders a page to a string.
func (t *Templates) RenderToString(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", &TemplateError{Message: "failed to render template", Cause: err}
	}
	return buf.String(), nil
}

// render executes into a buffer first so a failing template never leaves
// a half-written page behind.
func (t *Templates) render(w http.ResponseWriter, tmpl *template.Template, status int, data any) error {
	page, err := t.RenderToString(tmpl, data)
	if err != nil {
		return err
	}

	sw := t.NewSafeWriter(w)
	sw.SetStatusCode(status)
	if _, err := sw.Write([]byte(page)); err != nil {
		return &TemplateError{Message: "failed to write response", Cause: err}
	}
	return nil
}
