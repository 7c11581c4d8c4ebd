package mangrove

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as the "op" label.
const (
	opSignUp         = "sign_up"
	opSignIn         = "sign_in"
	opSignOut        = "sign_out"
	opResend         = "resend_verification"
	opVerifyEmail    = "verify_email"
	opResetPassword  = "reset_password"
	opRecoveryLogin  = "recovery_exchange"
	opUpdatePassword = "update_password"
	opValidate       = "validate_session"
)

// Metrics holds the engine collectors.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	mailSent   *prometheus.CounterVec
	audit      *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mangrove",
			Subsystem: "identity",
			Name:      "operations_total",
			Help:      "Identity operations by outcome.",
		}, []string{"op", "outcome"}),
		mailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mangrove",
			Subsystem: "identity",
			Name:      "mail_sent_total",
			Help:      "Account emails handed to the mailer.",
		}, []string{"kind"}),
		audit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mangrove",
			Subsystem: "identity",
			Name:      "audit_events_total",
			Help:      "Audit events by type and whether they reached the sink.",
		}, []string{"type", "outcome"}),
	}
	var err error
	if m.operations, err = registerCounter(reg, m.operations); err != nil {
		return nil, err
	}
	if m.mailSent, err = registerCounter(reg, m.mailSent); err != nil {
		return nil, err
	}
	if m.audit, err = registerCounter(reg, m.audit); err != nil {
		return nil, err
	}
	return m, nil
}

// registerCounter registers c, or returns the counter already registered
// under the same name.
func registerCounter(reg *prometheus.Registry, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

// observe counts one finished operation.
func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) mail(kind string) {
	if m == nil {
		return
	}
	m.mailSent.WithLabelValues(kind).Inc()
}

// auditOutcome counts what became of one audit event.
func (m *Metrics) auditOutcome(eventType, outcome string) {
	if m == nil {
		return
	}
	m.audit.WithLabelValues(eventType, outcome).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}
