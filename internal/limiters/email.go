package limiters

import (
	"context"
	"time"

	"github.com/mangrovewatch/mangrove/internal/rate"
	"github.com/redis/go-redis/v9"
)

// EmailConfig bounds how often an address may be sent mail.
type EmailConfig struct {
	MaxPerWindow int
	Window       time.Duration
}

// EmailLimiter throttles one kind of outgoing email per address and per IP.
type EmailLimiter struct {
	byAddress *rate.Limiter
	byIP      *rate.Limiter
}

// NewEmailLimiter returns a limiter for the mail kind, e.g. "resend" or
// "recovery".
func NewEmailLimiter(rdb redis.UniversalClient, prefix, kind string, cfg EmailConfig) *EmailLimiter {
	w := rate.Window{Max: cfg.MaxPerWindow, Period: cfg.Window}
	ipWindow := rate.Window{Max: cfg.MaxPerWindow * 5, Period: cfg.Window}
	return &EmailLimiter{
		byAddress: rate.New(rdb, prefix+":"+kind, w),
		byIP:      rate.New(rdb, prefix+":"+kind+"-ip", ipWindow),
	}
}

// Allow records one send to email from ip.
func (l *EmailLimiter) Allow(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.byAddress.Hit(ctx, email); err != nil {
		return err
	}
	if ip != "" {
		return l.byIP.Hit(ctx, ip)
	}
	return nil
}
