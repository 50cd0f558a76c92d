// Package middleware provides HTTP middleware for the collector.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/locplace/fingerprint/internal/collector/session"
)

type contextKey string

const (
	// SessionContextKey is the context key for the admin session.
	SessionContextKey contextKey = "session"
)

// SessionStore resolves a cookie token to a live admin session.
type SessionStore interface {
	Lookup(token string) (session.Session, bool)
}

// AdminAuth returns middleware for the admin JSON API. A request passes
// with a valid admin session cookie or with the configured X-Admin-Key.
// An empty apiKey disables header authentication.
func AdminAuth(apiKey string, sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s, ok := sessionFromRequest(r, sessions); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionContextKey, s)))
				return
			}
			if validKey(r.Header.Get("X-Admin-Key"), apiKey) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		})
	}
}

// RequireSession returns middleware for the admin HTML pages. Requests
// without a live session are redirected to loginPath.
func RequireSession(sessions SessionStore, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := sessionFromRequest(r, sessions)
			if !ok {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionContextKey, s)))
		})
	}
}

// GetSession retrieves the admin session from the request context.
// The second result is false for requests authenticated by API key.
func GetSession(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(session.Session)
	return s, ok
}

func sessionFromRequest(r *http.Request, sessions SessionStore) (session.Session, bool) {
	if sessions == nil {
		return session.Session{}, false
	}
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return session.Session{}, false
	}
	return sessions.Lookup(c.Value)
}

func validKey(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
