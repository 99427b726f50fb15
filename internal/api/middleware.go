package api

import (
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/sirupsen/logrus"
)

// responseWriter captures the status code and the served call.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	call       sso.Call
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}
		if wrapped.call != "" {
			fields["call"] = wrapped.call
		}
		a.log.WithFields(fields).Info("http request")
	})
}
