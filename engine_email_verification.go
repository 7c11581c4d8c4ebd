package mangrove

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"

	"github.com/mangrovewatch/mangrove/internal"
	"github.com/mangrovewatch/mangrove/internal/stores"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/validate"
)

// ResendVerificationEmail mails a fresh verification link. Unknown and
// already verified addresses succeed without sending anything.
func (e *Engine) ResendVerificationEmail(ctx context.Context, email string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	defer func() { e.metrics.observe(opResend, err) }()

	email = normalizeEmail(email)
	if !validate.IsEmail(email) {
		return ErrInvalidEmail
	}
	if err := e.resendLimiter.Allow(ctx, email, clientIPFromContext(ctx)); err != nil {
		return e.limitErr(opResend, err)
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return e.unavailable(opResend, err)
	}
	if acct.Status != StatusPendingVerification {
		return nil
	}
	return e.sendVerification(ctx, acct)
}

// VerifyEmail redeems a verification link and activates the account.
func (e *Engine) VerifyEmail(ctx context.Context, email, token string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	defer func() { e.metrics.observe(opVerifyEmail, err) }()

	email = normalizeEmail(email)
	id, secretHash, err := internal.ParseChallengeToken(token)
	if err != nil || email == "" {
		return ErrLinkInvalid
	}

	c, err := e.challenges.Consume(ctx, stores.KindEmailVerification, id, secretHash, e.config.EmailVerification.MaxAttempts)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeRedisUnavailable) {
			return e.unavailable(opVerifyEmail, err)
		}
		e.emitAudit(ctx, auditEventVerificationFailed, "", "", ErrLinkInvalid, nil)
		return ErrLinkInvalid
	}
	if c.Email != email {
		e.emitAudit(ctx, auditEventVerificationFailed, c.UserID, "", ErrLinkInvalid, nil)
		return ErrLinkInvalid
	}

	acct, err := e.accounts.GetAccountByID(ctx, c.UserID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrLinkInvalid
	}
	if err != nil {
		return e.unavailable(opVerifyEmail, err)
	}
	if acct.Status == StatusPendingVerification {
		if err := e.accounts.UpdateAccountStatus(ctx, acct.ID, StatusActive); err != nil {
			return e.unavailable(opVerifyEmail, err)
		}
	}
	e.emitAudit(ctx, auditEventVerificationDone, acct.ID, "", nil, nil)
	return nil
}

func (e *Engine) sendVerification(ctx context.Context, acct Account) error {
	id, token, secretHash, err := internal.NewChallengeToken()
	if err != nil {
		return e.unavailable("verification_token", err)
	}
	err = e.challenges.Save(ctx, id, stores.Challenge{
		Kind:       stores.KindEmailVerification,
		UserID:     acct.ID,
		Email:      acct.Email,
		SecretHash: secretHash,
		CreatedAt:  e.now(),
	}, e.config.EmailVerification.TTL)
	if err != nil {
		return e.unavailable("verification_save", err)
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("email", acct.Email)
	link := e.config.PublicURL + "/auth/verify?" + q.Encode()

	msg := mail.Message{
		Kind:    mail.KindVerification,
		To:      acct.Email,
		Subject: "Confirm your Mangrove Watch account",
		HTML: fmt.Sprintf(`<p>Welcome to Mangrove Watch.</p>`+
			`<p><a href="%s">Confirm your email address</a> to start reporting.</p>`, html.EscapeString(link)),
		Link: link,
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		return e.unavailable("verification_mail", err)
	}
	e.metrics.mail(string(mail.KindVerification))
	e.emitAudit(ctx, auditEventVerificationSent, acct.ID, "", nil, nil)
	return nil
}
