package middleware

import "net/http"

// CORSMiddleware adds CORS headers for the operations dashboard
type CORSMiddleware struct{}

// NewCORSMiddleware creates a CORS middleware allowing all origins
func NewCORSMiddleware() *CORSMiddleware {
	return &CORSMiddleware{}
}

// Wrap wraps an http.Handler with CORS headers
func (m *CORSMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Webhook-Secret")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
