package auth

import (
	"net/http"

	authlib "example.com/attendance/pkg/auth"
)

// Middleware requires a valid bearer token on everything except health checks,
// metrics scrapes and CORS preflights.
type Middleware struct {
	inner authlib.Middleware
}

func NewMiddleware(cfg Config) Middleware {
	return Middleware{inner: authlib.NewMiddleware(cfg, public)}
}

func public(r *http.Request) bool {
	switch {
	case r.Method == http.MethodOptions:
		return true
	case r.Method == http.MethodGet && (r.URL.Path == "/healthz" || r.URL.Path == "/metrics"):
		return true
	}
	return false
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}
