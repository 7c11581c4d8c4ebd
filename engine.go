package mangrove

import (
	"errors"
	"strings"
	"time"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/internal/audit"
	"github.com/mangrovewatch/mangrove/internal/limiters"
	"github.com/mangrovewatch/mangrove/internal/rate"
	"github.com/mangrovewatch/mangrove/internal/stores"
	"github.com/mangrovewatch/mangrove/jwt"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/password"
	"github.com/mangrovewatch/mangrove/session"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Engine is the local identity provider. It is safe for concurrent use.
type Engine struct {
	config          Config
	accounts        AccountStore
	sessions        *session.Store
	challenges      *stores.ChallengeStore
	signIn          *limiters.SignInLimiter
	resendLimiter   *limiters.EmailLimiter
	recoveryLimiter *limiters.EmailLimiter
	audit           *audit.Journal
	metrics         *Metrics
	hasher          *password.Hasher
	tokens          *jwt.Manager
	dummyHash       string
	mailer          mail.Mailer
	logger          *zap.Logger
	now             func() time.Time
}

var _ identity.Provider = (*Engine)(nil)

// Close flushes pending audit events. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Registry is the registry holding the engine collectors.
func (e *Engine) Registry() *prometheus.Registry {
	if e == nil || e.metrics == nil {
		return nil
	}
	return e.metrics.registry
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// ready reports ErrEngineNotReady for a nil or zero Engine.
func (e *Engine) ready() error {
	if e == nil || e.accounts == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	return nil
}

// unavailable logs an infrastructure failure and hides it from the caller.
func (e *Engine) unavailable(op string, err error) error {
	e.logger.Error("identity backend failure", zap.String("op", op), zap.Error(err))
	return ErrServiceUnavailable
}

// limitErr converts throttle failures.
func (e *Engine) limitErr(op string, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimited
	}
	return e.unavailable(op, err)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
