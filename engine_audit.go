package mangrove

import (
	"context"
	"errors"

	"github.com/mangrovewatch/mangrove/internal"
	"github.com/mangrovewatch/mangrove/internal/audit"
	"go.uber.org/zap"
)

const (
	auditEventSignUp             = "sign_up"
	auditEventSignUpDuplicate    = "sign_up_duplicate"
	auditEventSignInSuccess      = "sign_in_success"
	auditEventSignInFailure      = "sign_in_failure"
	auditEventSignInRateLimited  = "sign_in_rate_limited"
	auditEventSignOut            = "sign_out"
	auditEventVerificationSent   = "email_verification_sent"
	auditEventVerificationDone   = "email_verification_confirm"
	auditEventVerificationFailed = "email_verification_failed"
	auditEventRecoveryRequested  = "password_recovery_request"
	auditEventRecoveryExchanged  = "password_recovery_exchange"
	auditEventPasswordUpdated    = "password_update"
)

// AuditEvent is the event type delivered to audit sinks.
type AuditEvent = audit.Event

// NewZapAuditSink returns a sink that writes each event as one log entry.
func NewZapAuditSink(logger *zap.Logger) audit.Sink {
	return newZapAuditSink(logger)
}

func newZapAuditSink(logger *zap.Logger) audit.Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return audit.SinkFunc(func(_ context.Context, batch []audit.Event) error {
		for _, ev := range batch {
			logger.Info("audit", auditFields(ev)...)
		}
		return nil
	})
}

func auditFields(ev audit.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event", ev.Type),
		zap.Bool("success", ev.Success),
		zap.Time("time", ev.Time),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		fields = append(fields, zap.String("session_id", ev.SessionID))
	}
	if ev.IPHash != "" {
		fields = append(fields, zap.String("ip_hash", ev.IPHash))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	for k, v := range ev.Meta {
		fields = append(fields, zap.String("meta."+k, v))
	}
	return fields
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, sessionID string, err error, meta map[string]string) {
	ev := audit.Event{
		Time:      e.now(),
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		IPHash:    internal.HashString(clientIPFromContext(ctx)),
		Success:   err == nil,
		Meta:      meta,
	}
	if err != nil {
		ev.Error = auditCode(err)
	}
	e.audit.Append(ctx, ev)
}

func auditCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailNotConfirmed):
		return "account_unverified"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrLinkInvalid):
		return "invalid_link"
	case errors.Is(err, ErrUserAlreadyRegistered):
		return "duplicate"
	case errors.Is(err, ErrWeakPassword):
		return "password_policy"
	case errors.Is(err, ErrSamePassword):
		return "password_reuse"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
