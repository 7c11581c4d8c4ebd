package mangrove

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/internal"
	"github.com/mangrovewatch/mangrove/password"
	"github.com/mangrovewatch/mangrove/session"
	"github.com/mangrovewatch/mangrove/validate"
	"go.uber.org/zap"
)

// SignUp creates a pending account with its profile and mails a
// verification link.
func (e *Engine) SignUp(ctx context.Context, req identity.SignUpRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	defer func() { e.metrics.observe(opSignUp, err) }()

	email := normalizeEmail(req.Email)
	if !validate.IsEmail(email) {
		return ErrInvalidEmail
	}
	hash, err := e.hashPassword(req.Password)
	if err != nil {
		return err
	}

	acct, err := e.accounts.CreateAccount(ctx, NewAccount{
		ID:           uuid.NewString(),
		ProfileID:    uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		MobileNumber: strings.TrimSpace(req.MobileNumber),
		Status:       StatusPendingVerification,
	})
	if errors.Is(err, ErrAccountExists) {
		return e.signUpExisting(ctx, email, req.Password)
	}
	if err != nil {
		return e.unavailable(opSignUp, err)
	}

	if err := e.sendVerification(ctx, acct); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventSignUp, acct.ID, "", nil, nil)
	return nil
}

// signUpExisting handles a sign-up for an address that already has an
// account. A pending account whose password matches gets a fresh
// verification link, so a sign-up whose first mail failed can be retried.
func (e *Engine) signUpExisting(ctx context.Context, email, pw string) error {
	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return e.unavailable(opSignUp, err)
	}
	if err == nil && acct.Status == StatusPendingVerification {
		ok, verr := e.hasher.Verify(pw, acct.PasswordHash)
		if verr == nil && ok {
			if err := e.resendLimiter.Allow(ctx, email, clientIPFromContext(ctx)); err != nil {
				return e.limitErr(opSignUp, err)
			}
			if err := e.sendVerification(ctx, acct); err != nil {
				return err
			}
			e.emitAudit(ctx, auditEventSignUpDuplicate, acct.ID, "", nil, map[string]string{"resent": "true"})
			return nil
		}
	}
	e.emitAudit(ctx, auditEventSignUpDuplicate, "", "", ErrUserAlreadyRegistered, nil)
	return ErrUserAlreadyRegistered
}

// SignIn checks credentials and opens a session.
func (e *Engine) SignIn(ctx context.Context, email, pw string) (out identity.Session, err error) {
	if err := e.ready(); err != nil {
		return identity.Session{}, err
	}
	defer func() { e.metrics.observe(opSignIn, err) }()

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.signIn.Check(ctx, email, ip); err != nil {
		err = e.limitErr(opSignIn, err)
		if errors.Is(err, ErrRateLimited) {
			e.emitAudit(ctx, auditEventSignInRateLimited, "", "", err, nil)
		}
		return identity.Session{}, err
	}

	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		// Spend the same hashing work as a real account.
		_, _ = e.hasher.Verify(pw, e.dummyHash)
		return identity.Session{}, e.signInFailed(ctx, email, ip, "")
	}
	if err != nil {
		return identity.Session{}, e.unavailable(opSignIn, err)
	}

	ok, err := e.hasher.Verify(pw, acct.PasswordHash)
	if errors.Is(err, password.ErrMalformed) {
		return identity.Session{}, e.unavailable(opSignIn, err)
	}
	if err != nil || !ok {
		return identity.Session{}, e.signInFailed(ctx, email, ip, acct.ID)
	}

	switch acct.Status {
	case StatusActive:
	case StatusPendingVerification:
		e.emitAudit(ctx, auditEventSignInFailure, acct.ID, "", ErrEmailNotConfirmed, nil)
		return identity.Session{}, ErrEmailNotConfirmed
	default:
		e.emitAudit(ctx, auditEventSignInFailure, acct.ID, "", ErrAccountDisabled, nil)
		return identity.Session{}, ErrAccountDisabled
	}

	if err := e.signIn.Success(ctx, email); err != nil {
		e.logger.Warn("sign-in throttle reset failed", zap.Error(err))
	}
	e.maybeRehash(ctx, acct, pw)

	out, err = e.openSession(ctx, acct, false)
	if err != nil {
		return identity.Session{}, err
	}
	e.emitAudit(ctx, auditEventSignInSuccess, acct.ID, out.ID, nil, nil)
	return out, nil
}

func (e *Engine) signInFailed(ctx context.Context, email, ip, userID string) error {
	if err := e.signIn.Failure(ctx, email, ip); err != nil {
		e.logger.Warn("sign-in throttle update failed", zap.Error(err))
	}
	e.emitAudit(ctx, auditEventSignInFailure, userID, "", ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

func (e *Engine) maybeRehash(ctx context.Context, acct Account, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsRehash(acct.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return
	}
	if err := e.accounts.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", acct.ID), zap.Error(err))
	}
}

// SignOut ends the session carried by ctx. Without one it does nothing.
func (e *Engine) SignOut(ctx context.Context) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	sess, ok := sessionFromContext(ctx)
	if !ok {
		return nil
	}
	defer func() { e.metrics.observe(opSignOut, err) }()

	if err := e.sessions.Delete(ctx, sess.UserID, sess.ID); err != nil {
		return e.unavailable(opSignOut, err)
	}
	e.emitAudit(ctx, auditEventSignOut, sess.UserID, sess.ID, nil, nil)
	return nil
}

// ValidateSession resolves a session id, as carried by the session cookie.
func (e *Engine) ValidateSession(ctx context.Context, sid string) (identity.Session, error) {
	if err := e.ready(); err != nil {
		return identity.Session{}, err
	}
	if sid == "" {
		return identity.Session{}, ErrSessionMissing
	}

	rec, err := e.sessions.Get(ctx, sid)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		e.metrics.observe(opValidate, ErrSessionExpired)
		return identity.Session{}, ErrSessionExpired
	case err != nil:
		e.metrics.observe(opValidate, ErrServiceUnavailable)
		return identity.Session{}, e.unavailable(opValidate, err)
	}
	return identity.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Email:     rec.Email,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// ValidateAccessToken verifies a bearer token and the session it names.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (identity.Session, error) {
	if err := e.ready(); err != nil {
		return identity.Session{}, err
	}
	claims, err := e.tokens.Parse(token)
	if err != nil {
		return identity.Session{}, ErrSessionExpired
	}
	sess, err := e.ValidateSession(ctx, claims.SID)
	if err != nil {
		return identity.Session{}, err
	}
	if sess.UserID != claims.UID {
		return identity.Session{}, ErrSessionExpired
	}
	sess.AccessToken = token
	return sess, nil
}

func (e *Engine) openSession(ctx context.Context, acct Account, recovery bool) (identity.Session, error) {
	sid, err := internal.NewID()
	if err != nil {
		return identity.Session{}, e.unavailable("session_id", err)
	}

	ttl := e.config.Session.TTL
	if recovery {
		ttl = e.config.Session.RecoveryTTL
	}
	now := e.now()
	rec := &session.Session{
		ID:        sid,
		UserID:    acct.ID,
		Email:     acct.Email,
		Recovery:  recovery,
		IPHash:    internal.HashString(clientIPFromContext(ctx)),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := e.sessions.Save(ctx, rec, ttl); err != nil {
		return identity.Session{}, e.unavailable("session_save", err)
	}

	token, _, err := e.tokens.Issue(acct.ID, sid, acct.Email)
	if err != nil {
		return identity.Session{}, e.unavailable("token_issue", err)
	}
	return identity.Session{
		ID:          sid,
		UserID:      acct.ID,
		Email:       acct.Email,
		AccessToken: token,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// hashPassword enforces the password policy, then hashes pw.
func (e *Engine) hashPassword(pw string) (string, error) {
	if reason := validate.PasswordPolicy(pw); reason != "" {
		return "", &PasswordPolicyError{Reason: reason}
	}
	hash, err := e.hasher.Hash(pw)
	if errors.Is(err, password.ErrTooLong) || errors.Is(err, password.ErrTooShort) {
		return "", &PasswordPolicyError{Reason: err.Error()}
	}
	if err != nil {
		return "", e.unavailable("password_hash", err)
	}
	return hash, nil
}
