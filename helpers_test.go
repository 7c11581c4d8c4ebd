package mangrove

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

type testEnv struct {
	engine   *Engine
	accounts *fakeAccounts
	outbox   *mail.Outbox
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	accounts := newFakeAccounts()
	outbox := &mail.Outbox{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithMailer(outbox).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, accounts: accounts, outbox: outbox, redis: mr}
}

// signUpAndVerify registers email and follows its verification link.
func (env *testEnv) signUpAndVerify(t *testing.T, email, pw string) {
	t.Helper()

	ctx := context.Background()
	if err := env.engine.SignUp(ctx, signUpRequest(email, pw)); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	token := env.linkToken(t, email)
	if err := env.engine.VerifyEmail(ctx, email, token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
}

func (env *testEnv) linkToken(t *testing.T, email string) string {
	t.Helper()

	msg, ok := env.outbox.Last(email)
	if !ok {
		t.Fatalf("no mail sent to %s", email)
	}
	u, err := url.Parse(msg.Link)
	if err != nil {
		t.Fatalf("link parse failed: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q has no token", msg.Link)
	}
	return token
}

type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[string]Account
	profiles map[string]NewAccount
	failNext error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[string]Account{}, profiles: map[string]NewAccount{}}
}

func (f *fakeAccounts) fail() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeAccounts) CreateAccount(_ context.Context, a NewAccount) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return Account{}, err
	}
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, a.Email) {
			return Account{}, ErrAccountExists
		}
	}
	now := time.Now()
	acct := Account{ID: a.ID, Email: a.Email, PasswordHash: a.PasswordHash, Status: a.Status, CreatedAt: now, UpdatedAt: now}
	f.byID[a.ID] = acct
	f.profiles[a.ID] = a
	return acct, nil
}

func (f *fakeAccounts) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return Account{}, err
	}
	for _, a := range f.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (f *fakeAccounts) GetAccountByID(_ context.Context, id string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return Account{}, err
	}
	a, ok := f.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccounts) UpdateAccountStatus(_ context.Context, id string, status AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Status = status
	f.byID[id] = a
	return nil
}

func (f *fakeAccounts) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = hash
	f.byID[id] = a
	return nil
}

func (f *fakeAccounts) byEmail(email string) Account {
	a, _ := f.GetAccountByEmail(context.Background(), email)
	return a
}
