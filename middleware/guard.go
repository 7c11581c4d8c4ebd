package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mangrovewatch/mangrove/identity"
)

// Validator resolves session credentials.
type Validator interface {
	ValidateSession(ctx context.Context, sid string) (identity.Session, error)
	ValidateAccessToken(ctx context.Context, token string) (identity.Session, error)
}

// Authenticate attaches the caller's session to the request context via
// identity.WithSession. Requests with missing or invalid credentials pass
// through unauthenticated. An invalid session cookie is cleared.
func Authenticate(v Validator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				if sess, err := v.ValidateAccessToken(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), sess)))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
				sess, err := v.ValidateSession(r.Context(), c.Value)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), sess)))
					return
				}
				http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require rejects requests that carry no session. With a redirect path the
// caller is sent there with 303, otherwise it gets 401.
func Require(redirect string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identity.SessionFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if redirect == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, redirect, http.StatusSeeOther)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
