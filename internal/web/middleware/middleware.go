// Package middleware carries the HTTP middleware shared by the API
// routes.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/powerman/structlog"
)

var log = structlog.New()

// RequestLogging logs method, path, status and duration of every
// request.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"took", time.Since(start).Round(time.Microsecond))
		})
	}
}

// Recovery converts handler panics into 500 responses instead of
// dropping the connection.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.PrintErr(fmt.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter captures the response status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
