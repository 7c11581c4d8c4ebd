package mangrove

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/internal"
	"github.com/mangrovewatch/mangrove/internal/stores"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/session"
	"github.com/mangrovewatch/mangrove/validate"
	"go.uber.org/zap"
)

// ResetPassword mails a recovery link. Unknown addresses succeed without
// sending anything.
func (e *Engine) ResetPassword(ctx context.Context, email string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	defer func() { e.metrics.observe(opResetPassword, err) }()

	email = normalizeEmail(email)
	if !validate.IsEmail(email) {
		return ErrInvalidEmail
	}
	if err := e.recoveryLimiter.Allow(ctx, email, clientIPFromContext(ctx)); err != nil {
		return e.limitErr(opResetPassword, err)
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return e.unavailable(opResetPassword, err)
	}
	if acct.Status == StatusDisabled {
		return nil
	}

	id, token, secretHash, err := internal.NewChallengeToken()
	if err != nil {
		return e.unavailable(opResetPassword, err)
	}
	err = e.challenges.Save(ctx, id, stores.Challenge{
		Kind:       stores.KindPasswordRecovery,
		UserID:     acct.ID,
		Email:      acct.Email,
		SecretHash: secretHash,
		CreatedAt:  e.now(),
	}, e.config.PasswordReset.TTL)
	if err != nil {
		return e.unavailable(opResetPassword, err)
	}

	link := e.config.PublicURL + "/auth/reset-password?" + url.Values{"token": {token}}.Encode()
	msg := mail.Message{
		Kind:    mail.KindRecovery,
		To:      acct.Email,
		Subject: "Reset your Mangrove Watch password",
		HTML: fmt.Sprintf(`<p>Someone asked to reset the password for this account.</p>`+
			`<p><a href="%s">Choose a new password</a>. If it was not you, ignore this email.</p>`, html.EscapeString(link)),
		Link: link,
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		return e.unavailable(opResetPassword, err)
	}
	e.metrics.mail(string(mail.KindRecovery))
	e.emitAudit(ctx, auditEventRecoveryRequested, acct.ID, "", nil, nil)
	return nil
}

// ExchangeRecoveryToken redeems a recovery link and opens a short-lived
// session in which UpdatePassword can be called. A pending account is
// activated, since the link proves ownership of the address.
func (e *Engine) ExchangeRecoveryToken(ctx context.Context, token string) (out identity.Session, err error) {
	if err := e.ready(); err != nil {
		return identity.Session{}, err
	}
	defer func() { e.metrics.observe(opRecoveryLogin, err) }()

	id, secretHash, err := internal.ParseChallengeToken(token)
	if err != nil {
		return identity.Session{}, ErrLinkInvalid
	}
	c, err := e.challenges.Consume(ctx, stores.KindPasswordRecovery, id, secretHash, e.config.PasswordReset.MaxAttempts)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeRedisUnavailable) {
			return identity.Session{}, e.unavailable(opRecoveryLogin, err)
		}
		return identity.Session{}, ErrLinkInvalid
	}

	acct, err := e.accounts.GetAccountByID(ctx, c.UserID)
	if errors.Is(err, ErrAccountNotFound) {
		return identity.Session{}, ErrLinkInvalid
	}
	if err != nil {
		return identity.Session{}, e.unavailable(opRecoveryLogin, err)
	}
	switch acct.Status {
	case StatusDisabled:
		return identity.Session{}, ErrAccountDisabled
	case StatusPendingVerification:
		if err := e.accounts.UpdateAccountStatus(ctx, acct.ID, StatusActive); err != nil {
			return identity.Session{}, e.unavailable(opRecoveryLogin, err)
		}
	}

	out, err = e.openSession(ctx, acct, true)
	if err != nil {
		return identity.Session{}, err
	}
	e.emitAudit(ctx, auditEventRecoveryExchanged, acct.ID, out.ID, nil, nil)
	return out, nil
}

// UpdatePassword sets a new password for the session in ctx and signs out
// every other session of the user.
func (e *Engine) UpdatePassword(ctx context.Context, newPassword string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	defer func() { e.metrics.observe(opUpdatePassword, err) }()

	sess, ok := sessionFromContext(ctx)
	if !ok {
		return ErrSessionMissing
	}
	if _, err := e.sessions.Get(ctx, sess.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return ErrSessionMissing
		}
		return e.unavailable(opUpdatePassword, err)
	}

	acct, err := e.accounts.GetAccountByID(ctx, sess.UserID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrSessionMissing
	}
	if err != nil {
		return e.unavailable(opUpdatePassword, err)
	}

	if same, err := e.hasher.Verify(newPassword, acct.PasswordHash); err == nil && same {
		e.emitAudit(ctx, auditEventPasswordUpdated, acct.ID, sess.ID, ErrSamePassword, nil)
		return ErrSamePassword
	}
	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return e.unavailable(opUpdatePassword, err)
	}

	revoked, err := e.sessions.DeleteAllForUser(ctx, acct.ID, sess.ID)
	if err != nil {
		e.logger.Warn("revoking sessions after password update failed",
			zap.String("user_id", acct.ID), zap.Error(err))
	}
	e.emitAudit(ctx, auditEventPasswordUpdated, acct.ID, sess.ID, nil,
		map[string]string{"revoked_sessions": fmt.Sprint(revoked)})
	return nil
}
