package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/screens"
	"github.com/mangrovewatch/mangrove/screens/redisstore"
	"github.com/mangrovewatch/mangrove/storage/memory"
	"github.com/redis/go-redis/v9"
)

const testPassword = "Mangrove1"

type manualTicker struct{ ch chan time.Time }

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (manualTicker) Stop()                 {}

// manualClock hands every controller the same tick channel so a test can
// drive the countdown.
type manualClock struct{ ch chan time.Time }

func (c manualClock) NewTicker(time.Duration) flow.Ticker { return manualTicker{ch: c.ch} }

type testApp struct {
	server  *Server
	engine  *mangrove.Engine
	store   *memory.Store
	outbox  *mail.Outbox
	reports *redisstore.Store
	redis   *miniredis.Miniredis
	ticks   chan time.Time
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := mangrove.DefaultConfig()
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	store := memory.New()
	outbox := &mail.Outbox{}
	engine, err := mangrove.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithMailer(outbox).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	reports := redisstore.New(rdb, "test")
	ticks := make(chan time.Time)
	srv, err := NewServer(Options{
		Identity:   engine,
		Profiles:   store,
		Reports:    reports,
		Registry:   engine.Registry(),
		Clock:      manualClock{ch: ticks},
		CookieName: cfg.Session.CookieName,
		SessionTTL: cfg.Session.TTL,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	return &testApp{
		server:  srv,
		engine:  engine,
		store:   store,
		outbox:  outbox,
		reports: reports,
		redis:   mr,
		ticks:   ticks,
	}
}

// register signs email up and returns the link it was mailed.
func (a *testApp) register(t *testing.T, email string) *url.URL {
	t.Helper()

	err := a.engine.SignUp(context.Background(), identity.SignUpRequest{
		Email:        email,
		Password:     testPassword,
		FullName:     "Ana Reyes",
		MobileNumber: "+63 912 345 6789",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	return a.lastLink(t, email)
}

// registerVerified registers email and follows its verification link.
func (a *testApp) registerVerified(t *testing.T, email string) {
	t.Helper()

	link := a.register(t, email)
	q := link.Query()
	if err := a.engine.VerifyEmail(context.Background(), q.Get("email"), q.Get("token")); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
}

func (a *testApp) lastLink(t *testing.T, email string) *url.URL {
	t.Helper()

	msg, ok := a.outbox.Last(email)
	if !ok {
		t.Fatalf("no mail sent to %s", email)
	}
	u, err := url.Parse(msg.Link)
	if err != nil {
		t.Fatalf("parse link failed: %v", err)
	}
	return u
}

// browser replays cookies between requests the way a browser would.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func (a *testApp) browser(t *testing.T) *browser {
	b := &browser{t: t, h: a.server, cookies: map[string]*http.Cookie{}}
	b.cookies[screens.SplashCookie] = &http.Cookie{Name: screens.SplashCookie, Value: "1"}
	return b
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

type upload struct {
	name        string
	contentType string
	body        string
}

func (b *browser) postMultipart(target string, fields url.Values, files ...upload) *httptest.ResponseRecorder {
	b.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				b.t.Fatalf("WriteField failed: %v", err)
			}
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photos"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			b.t.Fatalf("CreatePart failed: %v", err)
		}
		if _, err := io.WriteString(part, f.body); err != nil {
			b.t.Fatalf("write part failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		b.t.Fatalf("multipart close failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.send(req)
}

// signIn logs email in through the auth page.
func (b *browser) signIn(email string) {
	b.t.Helper()

	rec := b.post("/auth", url.Values{"action": {"login"}, "email": {email}, "password": {testPassword}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		b.t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := b.cookies["mw_session"]; !ok {
		b.t.Fatal("expected session cookie after login")
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, want ...string) {
	t.Helper()

	body := rec.Body.String()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Fatalf("expected body to contain %q, got:\n%s", w, body)
		}
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
