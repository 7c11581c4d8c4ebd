// Package identity defines the operations the authentication flows expect
// from an identity provider, and the session value it hands back.
package identity

import (
	"context"
	"time"
)

// SignUpRequest carries the registration data forwarded to the provider.
type SignUpRequest struct {
	Email        string
	Password     string
	FullName     string
	MobileNumber string
}

// Session is an authenticated session issued by the provider.
type Session struct {
	ID          string
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether s identifies a session.
func (s Session) Valid() bool {
	return s.ID != "" && s.UserID != ""
}

// Provider is implemented by identity backends. Errors returned by these
// methods are shown to the user as-is, so implementations must only return
// user-safe messages.
type Provider interface {
	SignUp(ctx context.Context, req SignUpRequest) error
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
	ResendVerificationEmail(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, token string) error
	UpdatePassword(ctx context.Context, newPassword string) error
}

type sessionKey struct{}

// WithSession returns a child context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || !s.Valid() {
		return Session{}, false
	}
	return s, true
}
