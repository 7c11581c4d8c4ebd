package flow

import (
	"context"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/identity"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	errs     map[string]error
	panicOn  string
	block    chan struct{}
	entered  chan struct{}
	session  identity.Session
	signUp   identity.SignUpRequest
	lastArgs []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:   make(map[string]int),
		errs:    make(map[string]error),
		session: identity.Session{ID: "sid-1", UserID: "user-1", Email: "a@b.com"},
	}
}

func (p *fakeProvider) record(op string, args ...string) error {
	p.mu.Lock()
	p.calls[op]++
	p.lastArgs = args
	err := p.errs[op]
	panicOn := p.panicOn
	block := p.block
	entered := p.entered
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if panicOn == op {
		panic("boom")
	}
	return err
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) args() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lastArgs...)
}

func (p *fakeProvider) SignUp(_ context.Context, req identity.SignUpRequest) error {
	p.mu.Lock()
	p.signUp = req
	p.mu.Unlock()
	return p.record("SignUp", req.Email)
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (identity.Session, error) {
	if err := p.record("SignIn", email, password); err != nil {
		return identity.Session{}, err
	}
	return p.session, nil
}

func (p *fakeProvider) SignOut(context.Context) error { return p.record("SignOut") }

func (p *fakeProvider) ResendVerificationEmail(_ context.Context, email string) error {
	return p.record("ResendVerificationEmail", email)
}

func (p *fakeProvider) ResetPassword(_ context.Context, email string) error {
	return p.record("ResetPassword", email)
}

func (p *fakeProvider) VerifyEmail(_ context.Context, email, token string) error {
	return p.record("VerifyEmail", email, token)
}

func (p *fakeProvider) UpdatePassword(_ context.Context, pw string) error {
	return p.record("UpdatePassword", pw)
}

type navigation struct {
	to      string
	replace bool
}

type recordingNavigator struct {
	mu   sync.Mutex
	navs []navigation
}

func (n *recordingNavigator) Navigate(to string, replace bool) {
	n.mu.Lock()
	n.navs = append(n.navs, navigation{to, replace})
	n.mu.Unlock()
}

func (n *recordingNavigator) all() []navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navigation(nil), n.navs...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []Toast
}

func (n *recordingNotifier) Notify(t Toast) {
	n.mu.Lock()
	n.toasts = append(n.toasts, t)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Toast(nil), n.toasts...)
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// tick delivers one tick, failing when nobody is listening.
func (t *manualTicker) tick() bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
	period  time.Duration
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	c.period = d
	return t
}

func (c *manualClock) last() *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}
