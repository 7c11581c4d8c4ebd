package limiters

import (
	"context"
	"time"

	"github.com/mangrovewatch/mangrove/internal/rate"
	"github.com/redis/go-redis/v9"
)

// SignInConfig bounds failed sign-in attempts.
type SignInConfig struct {
	MaxFailures int
	Cooldown    time.Duration
	PerIP       bool
}

// SignInLimiter locks an email (and optionally a client IP) out after too
// many failed sign-ins.
type SignInLimiter struct {
	byEmail *rate.Limiter
	byIP    *rate.Limiter
}

func NewSignInLimiter(rdb redis.UniversalClient, prefix string, cfg SignInConfig) *SignInLimiter {
	w := rate.Window{Max: cfg.MaxFailures, Period: cfg.Cooldown}
	l := &SignInLimiter{byEmail: rate.New(rdb, prefix+":signin", w)}
	if cfg.PerIP {
		l.byIP = rate.New(rdb, prefix+":signin-ip", w)
	}
	return l
}

// Check fails with rate.ErrRateLimited while email or ip is locked out.
func (l *SignInLimiter) Check(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.byEmail.Check(ctx, email); err != nil {
		return err
	}
	if ip != "" {
		return l.byIP.Check(ctx, ip)
	}
	return nil
}

// Failure records a failed attempt.
func (l *SignInLimiter) Failure(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	err := l.byEmail.Hit(ctx, email)
	if ip != "" {
		if ipErr := l.byIP.Hit(ctx, ip); err == nil {
			err = ipErr
		}
	}
	return err
}

// Success clears the email counter.
func (l *SignInLimiter) Success(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return l.byEmail.Reset(ctx, email)
}
