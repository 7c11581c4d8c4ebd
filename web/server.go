// Package web serves the Mangrove Watch pages over HTTP.
//
// Pages are rendered on the server. Each POST rebuilds the page controller
// from the request, runs one action and either redirects or renders the
// resulting view together with any toasts raised while handling it.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/middleware"
	"github.com/mangrovewatch/mangrove/profile"
	"github.com/mangrovewatch/mangrove/screens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// ErrMissingIdentity is returned by NewServer without an identity backend.
	ErrMissingIdentity = errors.New("web: identity backend is required")
	// ErrMissingProfiles is returned by NewServer without a profile store.
	ErrMissingProfiles = errors.New("web: profile store is required")
)

const (
	defaultCookieName = "mw_session"
	authStateCookie   = "mw_auth"
	maxUploadBytes    = 32 << 20
	signInPath        = "/auth"
)

// Identity is the identity backend the pages talk to.
type Identity interface {
	identity.Provider
	middleware.Validator
	ExchangeRecoveryToken(ctx context.Context, token string) (identity.Session, error)
}

// Options configures a Server.
type Options struct {
	Identity Identity
	Profiles profile.Store
	// Reports stores submitted reports. Nil accepts reports without
	// keeping them.
	Reports screens.ReportStore
	Logger  *zap.Logger
	// Registry receives the HTTP metrics and is served at /metrics.
	Registry *prometheus.Registry
	// Clock drives the verification countdown. Nil uses the wall clock.
	Clock flow.Clock

	CookieName     string
	SessionTTL     time.Duration
	SecureCookies  bool
	AllowedOrigins []string
}

// Server is the HTTP front end.
type Server struct {
	identity Identity
	profiles profile.Store
	reports  screens.ReportStore
	logger   *zap.Logger
	clock    flow.Clock
	pages    pages
	upgrader websocket.Upgrader
	router   chi.Router

	cookieName    string
	sessionTTL    time.Duration
	secureCookies bool

	requests  *prometheus.CounterVec
	submitted *prometheus.CounterVec
}

// NewServer validates opts and builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Identity == nil {
		return nil, ErrMissingIdentity
	}
	if opts.Profiles == nil {
		return nil, ErrMissingProfiles
	}

	p, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		identity:      opts.Identity,
		profiles:      opts.Profiles,
		reports:       opts.Reports,
		logger:        opts.Logger,
		clock:         opts.Clock,
		pages:         p,
		cookieName:    opts.CookieName,
		sessionTTL:    opts.SessionTTL,
		secureCookies: opts.SecureCookies,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = flow.SystemClock{}
	}
	if s.cookieName == "" {
		s.cookieName = defaultCookieName
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s.requests = registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mangrove_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"}))
	s.submitted = registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mangrove_reports_submitted_total",
		Help: "Report submissions by category and outcome.",
	}, []string{"category", "outcome"}))

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	s.router = s.routes(reg, opts.AllowedOrigins)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(reg *prometheus.Registry, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(withClientIP)
	r.Use(middleware.Authenticate(s.identity, s.cookieName))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/", s.handleShell)
	r.With(middleware.Require("/auth")).Post("/report", s.handleReport)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/", s.handleAuthPage)
		r.Post("/", s.handleAuthAction)
		r.Get("/verify", s.handleVerifyPage)
		r.Post("/verify", s.handleVerifySubmit)
		r.Get("/verify/live", s.handleVerifyLive)
		r.Get("/reset-password", s.handleResetPage)
		r.Post("/reset-password", s.handleResetAction)
	})

	r.Get("/profile", s.handleProfilePage)
	r.Post("/profile", s.handleProfileAction)
	r.Post("/logout", s.handleLogout)

	return r
}

// logRequests logs one line per request and counts it by route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(mangrove.WithClientIP(r.Context(), ip)))
	})
}

// originChecker accepts same-host websocket upgrades and the configured
// CORS origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess identity.Session) {
	maxAge := int(s.sessionTTL / time.Second)
	if !sess.ExpiresAt.IsZero() {
		if left := int(time.Until(sess.ExpiresAt) / time.Second); left > 0 {
			maxAge = left
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.SignOut(r.Context()); err != nil {
		s.logger.Warn("sign out failed", zap.Error(err))
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}
