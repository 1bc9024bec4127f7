package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/alexa-media-skill/internal/linking"
	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/skill"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		code        string
		description string
		want        ErrorResponse
	}{
		{
			name:        "basic error",
			status:      http.StatusBadRequest,
			code:        CodeInvalidRequest,
			description: "Missing required parameter ",
			want:        ErrorResponse{Error: CodeInvalidRequest, ErrorDescription: "Missing required parameter"},
		},
		{
			name:   "error without description",
			status: http.StatusNotFound,
			code:   CodeNotFound,
			want:   ErrorResponse{Error: CodeNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.status, tt.code, tt.description)

			if w.Code != tt.status {
				t.Errorf("status = %v, want %v", w.Code, tt.status)
			}
			for k, v := range map[string]string{
				"Cache-Control": "no-store",
				"Content-Type":  "application/json",
			} {
				if got := w.Header().Get(k); got != v {
					t.Errorf("header[%s] = %v, want %v", k, got, v)
				}
			}

			var got ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &validation.ValidationError{Field: "x", Message: "bad"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("saving: %w", &validation.ValidationError{}), http.StatusBadRequest},
		{"unauthorized", &lwa.Error{Kind: lwa.KindUnauthorized, Op: "refresh"}, http.StatusUnauthorized},
		{"unlinked caller", skill.ErrUnknownUser, http.StatusUnauthorized},
		{"missing user", users.ErrNotFound, http.StatusNotFound},
		{"missing item", media.ErrNotFound, http.StatusNotFound},
		{"no linkage", linking.ErrNoLinkage, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteErrHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErr(w, errors.New("dial tcp 10.0.0.1: refused"))

	var got ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := ErrorResponse{Error: CodeServerError, ErrorDescription: "internal error"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}
