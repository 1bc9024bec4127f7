package templates

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recorder logs every header commit so tests can tell how often the
// status line was sent
type recorder struct {
	*httptest.ResponseRecorder
	codes  []int
	writes int
}

func newRecorder() *recorder {
	return &recorder{ResponseRecorder: httptest.NewRecorder()}
}

func (r *recorder) WriteHeader(code int) {
	r.codes = append(r.codes, code)
	r.ResponseRecorder.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.writes++
	return r.ResponseRecorder.Write(b)
}

func (r *recorder) contentType() string {
	return r.Header().Get("Content-Type")
}

func (r *recorder) has(ss ...string) bool {
	body := r.Body.String()
	for _, s := range ss {
		if !strings.Contains(body, s) {
			return false
		}
	}
	return true
}

var _ http.ResponseWriter = (*recorder)(nil)

func loadTemplates(t *testing.T) *Templates {
	t.Helper()
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	return tmpl
}
