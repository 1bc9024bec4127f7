// Package common holds response helpers shared by the HTTP handlers
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wrale/alexa-media-skill/internal/linking"
	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/skill"
	"github.com/wrale/alexa-media-skill/internal/smapi"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Error codes
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeNotFound       = "not_found"
	CodeServerError    = "server_error"
)

// SetJSONHeaders sets the headers of every JSON response
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON sends v with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	body, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// WriteError sends a standardized error response
func WriteError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// WriteErr maps err onto a status and error code
func WriteErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	code := CodeServerError
	description := "internal error"
	switch status {
	case http.StatusBadRequest:
		code, description = CodeInvalidRequest, err.Error()
	case http.StatusUnauthorized:
		code, description = CodeUnauthorized, err.Error()
	case http.StatusNotFound:
		code, description = CodeNotFound, err.Error()
	}
	WriteError(w, status, code, description)
}

// StatusFor returns the HTTP status for err
func StatusFor(err error) int {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, lwa.ErrUnauthorized),
		errors.Is(err, skill.ErrUnknownUser):
		return http.StatusUnauthorized
	case errors.Is(err, users.ErrNotFound),
		errors.Is(err, media.ErrNotFound),
		errors.Is(err, smapi.ErrNotFound),
		errors.Is(err, linking.ErrNoLinkage),
		errors.Is(err, linking.ErrLinkExpired):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSONError handles JSON encoding failures with a fixed response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
}
