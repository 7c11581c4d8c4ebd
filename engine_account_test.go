package mangrove

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/mail"
)

func signUpRequest(email, pw string) identity.SignUpRequest {
	return identity.SignUpRequest{
		Email:        email,
		Password:     pw,
		FullName:     "Maria Santos",
		MobileNumber: "+63 912 345 6789",
	}
}

func TestSignUpCreatesPendingAccount(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	if err := env.engine.SignUp(ctx, signUpRequest("  Maria@Example.com ", "Mangrove1")); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	acct := env.accounts.byEmail("maria@example.com")
	if acct.ID == "" {
		t.Fatal("expected account stored under normalized email")
	}
	if acct.Status != StatusPendingVerification {
		t.Fatalf("expected pending status, got %v", acct.Status)
	}
	if acct.PasswordHash == "Mangrove1" {
		t.Fatal("password stored in plain text")
	}
	if p := env.accounts.profiles[acct.ID]; p.FullName != "Maria Santos" || p.ProfileID == "" {
		t.Fatalf("unexpected profile data: %+v", p)
	}

	msg, ok := env.outbox.Last("maria@example.com")
	if !ok {
		t.Fatal("expected verification mail")
	}
	if msg.Kind != "verification" {
		t.Fatalf("unexpected mail kind %q", msg.Kind)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	env.signUpAndVerify(t, "a@b.co", "Mangrove1")
	err := env.engine.SignUp(ctx, signUpRequest("A@B.CO", "Mangrove1"))
	if !errors.Is(err, ErrUserAlreadyRegistered) {
		t.Fatalf("expected ErrUserAlreadyRegistered, got %v", err)
	}
}

func TestSignUpPendingAccountWithOtherPassword(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	if err := env.engine.SignUp(ctx, signUpRequest("a@b.co", "Mangrove1")); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	before := len(env.outbox.Messages())
	err := env.engine.SignUp(ctx, signUpRequest("a@b.co", "Different9"))
	if !errors.Is(err, ErrUserAlreadyRegistered) {
		t.Fatalf("expected ErrUserAlreadyRegistered, got %v", err)
	}
	if len(env.outbox.Messages()) != before {
		t.Fatal("no mail should be sent for a mismatched retry")
	}
}

type flakyMailer struct {
	failures int
	mail.Outbox
}

func (m *flakyMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp: connection reset")
	}
	return m.Outbox.Send(ctx, msg)
}

func TestSignUpRetryAfterMailFailure(t *testing.T) {
	_, rdb := newTestRedis(t)
	accounts := newFakeAccounts()
	mailer := &flakyMailer{failures: 1}
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	if err := engine.SignUp(ctx, signUpRequest("a@b.co", "Mangrove1")); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if err := engine.SignUp(ctx, signUpRequest("a@b.co", "Mangrove1")); err != nil {
		t.Fatalf("retried SignUp failed: %v", err)
	}

	msg, ok := mailer.Last("a@b.co")
	if !ok {
		t.Fatal("expected verification mail on retry")
	}
	u, err := url.Parse(msg.Link)
	if err != nil {
		t.Fatalf("link parse failed: %v", err)
	}
	if err := engine.VerifyEmail(ctx, "a@b.co", u.Query().Get("token")); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if _, err := engine.SignIn(ctx, "a@b.co", "Mangrove1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
}

func TestSignUpRejectsBadInput(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		email string
		pw    string
		want  error
	}{
		{name: "bad email", email: "not-an-email", pw: "Mangrove1", want: ErrInvalidEmail},
		{name: "short password", email: "a@b.co", pw: "Ab1", want: ErrWeakPassword},
		{name: "no digit", email: "a@b.co", pw: "Mangroves", want: ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.engine.SignUp(ctx, signUpRequest(tt.email, tt.pw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	var policy *PasswordPolicyError
	err := env.engine.SignUp(ctx, signUpRequest("a@b.co", "Ab1"))
	if !errors.As(err, &policy) || policy.Reason == "" {
		t.Fatalf("expected PasswordPolicyError with reason, got %v", err)
	}
}

func TestSignUpHidesStoreFailure(t *testing.T) {
	env := newTestEngine(t)
	env.accounts.failNext = errors.New("connection refused")

	err := env.engine.SignUp(context.Background(), signUpRequest("a@b.co", "Mangrove1"))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestSignInRequiresVerifiedEmail(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	if err := env.engine.SignUp(ctx, signUpRequest("a@b.co", "Mangrove1")); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := env.engine.SignIn(ctx, "a@b.co", "Mangrove1"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
}

func TestSignInIssuesSession(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")

	sess, err := env.engine.SignIn(ctx, "A@b.co", "Mangrove1")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !sess.Valid() || sess.AccessToken == "" || sess.Email != "a@b.co" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	got, err := env.engine.ValidateSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if got.UserID != sess.UserID {
		t.Fatalf("expected user %q, got %q", sess.UserID, got.UserID)
	}

	viaToken, err := env.engine.ValidateAccessToken(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if viaToken.ID != sess.ID {
		t.Fatalf("expected session %q, got %q", sess.ID, viaToken.ID)
	}
}

func TestSignInWrongPasswordAndUnknownEmail(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")

	if _, err := env.engine.SignIn(ctx, "a@b.co", "Mangrove2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.SignIn(ctx, "nobody@b.co", "Mangrove1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := env.engine.SignIn(ctx, "a@b.co", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for short password, got %v", err)
	}
}

func TestSignInLockout(t *testing.T) {
	env := newTestEngine(t, func(c *Config) { c.SignIn.MaxFailures = 3 })
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.SignIn(ctx, "a@b.co", "Wrong1234"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.SignIn(ctx, "a@b.co", "Mangrove1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSignInDisabledAccount(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")

	acct := env.accounts.byEmail("a@b.co")
	if err := env.accounts.UpdateAccountStatus(ctx, acct.ID, StatusDisabled); err != nil {
		t.Fatalf("UpdateAccountStatus failed: %v", err)
	}
	if _, err := env.engine.SignIn(ctx, "a@b.co", "Mangrove1"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestSignInRehashesWeakHash(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")
	before := env.accounts.byEmail("a@b.co").PasswordHash

	// Stronger parameters on a second engine over the same store.
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Password.Time = 2
	stronger, err := New().WithConfig(cfg).WithRedis(rdb).WithAccountStore(env.accounts).WithMailer(env.outbox).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer stronger.Close()

	if _, err := stronger.SignIn(ctx, "a@b.co", "Mangrove1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if after := env.accounts.byEmail("a@b.co").PasswordHash; after == before {
		t.Fatal("expected password hash to be upgraded")
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.signUpAndVerify(t, "a@b.co", "Mangrove1")

	sess, err := env.engine.SignIn(ctx, "a@b.co", "Mangrove1")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := env.engine.SignOut(identity.WithSession(ctx, sess)); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := env.engine.ValidateSession(ctx, sess.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(ctx, sess.AccessToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected token of revoked session to fail, got %v", err)
	}

	// No session: nothing to do.
	if err := env.engine.SignOut(ctx); err != nil {
		t.Fatalf("SignOut without session failed: %v", err)
	}
}

func TestValidateSessionRedisDown(t *testing.T) {
	env := newTestEngine(t)
	env.redis.Close()

	_, err := env.engine.ValidateSession(context.Background(), "abc")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if err := e.SignUp(context.Background(), signUpRequest("a@b.co", "Mangrove1")); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.SignIn(context.Background(), "a@b.co", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
