package templates

import "net/http"

// SafeWriter sends the HTML content type and a status code exactly once.
type SafeWriter struct {
	w       http.ResponseWriter
	status  int
	written bool
}

// NewSafeWriter wraps w. The status defaults to 200.
func (t *Templates) NewSafeWriter(w http.ResponseWriter) *SafeWriter {
	return &SafeWriter{w: w, status: http.StatusOK}
}

// SetStatusCode sets the status sent with the first write.
func (sw *SafeWriter) SetStatusCode(code int) {
	if !sw.written {
		sw.status = code
	}
}

func (sw *SafeWriter) Header() http.Header {
	return sw.w.Header()
}

func (sw *SafeWriter) WriteHeader(code int) {
	if sw.written {
		return
	}
	sw.written = true
	sw.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	sw.w.WriteHeader(code)
}

func (sw *SafeWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.WriteHeader(sw.status)
	}
	return sw.w.Write(b)
}

// Written reports whether headers have been sent.
func (sw *SafeWriter) Written() bool {
	return sw.written
}
