package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHealthHandler(t *testing.T) {
	version := "1.0.0"
	ok := CheckFunc(func(ctx context.Context) error { return nil })
	down := CheckFunc(func(ctx context.Context) error { return errors.New("service unavailable") })

	tests := []struct {
		name     string
		checks   map[string]Checker
		wantCode int
		wantBody Response
	}{
		{
			name:     "healthy system",
			checks:   map[string]Checker{"users": ok, "media_server": ok},
			wantCode: http.StatusOK,
			wantBody: Response{
				Status:  "healthy",
				Version: version,
				Details: map[string]any{
					"users":        map[string]any{"status": "healthy"},
					"media_server": map[string]any{"status": "healthy"},
				},
			},
		},
		{
			name:     "media server unhealthy",
			checks:   map[string]Checker{"users": ok, "media_server": down},
			wantCode: http.StatusServiceUnavailable,
			wantBody: Response{
				Status:  "unhealthy",
				Version: version,
				Details: map[string]any{
					"users": map[string]any{"status": "healthy"},
					"media_server": map[string]any{
						"status":  "unhealthy",
						"message": "service unavailable",
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(tt.checks).WithVersion(version)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %v, want %v", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %v", got)
			}

			var got Response
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealthHandlerDefaultVersion(t *testing.T) {
	w := httptest.NewRecorder()
	New(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var got Response
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Version != "unknown" || got.Status != "healthy" {
		t.Errorf("response = %+v", got)
	}
}
