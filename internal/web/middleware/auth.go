package middleware

import (
	"net/http"
)

// Authentication requires the configured key in the X-API-Key header.
// An empty key disables the check.
func Authentication(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && r.Header.Get("X-API-Key") != apiKey {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid or missing API key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
