package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/screens"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"shell", "auth", "verify", "reset", "profile"}

var templateFuncs = template.FuncMap{
	"badgeIcon": screens.BadgeIcon,
	"date":      formatDate,
}

func formatDate(t time.Time) string { return t.Format("Jan 2, 2006") }

// pages holds one template set per page, each combined with the layout.
type pages map[string]*template.Template

func loadPages() (pages, error) {
	out := make(pages, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// pageData is what every template receives.
type pageData struct {
	Title   string
	Toasts  []flow.Toast
	Signed  bool
	Content any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, toasts []flow.Toast, content any) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}

	_, signed := identity.SessionFromContext(r.Context())
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "layout", pageData{
		Title:   title,
		Toasts:  toasts,
		Signed:  signed,
		Content: content,
	})
	if err != nil {
		s.logger.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, flow.GenericErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// exchange collects what a controller does while one request is handled:
// the toasts it raises and where it wants to go next.
type exchange struct {
	mu     sync.Mutex
	toasts []flow.Toast
	target string
}

func (x *exchange) Notify(t flow.Toast) {
	x.mu.Lock()
	x.toasts = append(x.toasts, t)
	x.mu.Unlock()
}

func (x *exchange) Navigate(to string, _ bool) {
	x.mu.Lock()
	x.target = to
	x.mu.Unlock()
}

func (x *exchange) Toasts() []flow.Toast {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]flow.Toast(nil), x.toasts...)
}

// Target is the last navigation request, if any.
func (x *exchange) Target() (string, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.target, x.target != ""
}

// authState is the cookie form of flow.AuthSnapshot.
type authState struct {
	View         string `json:"view"`
	PendingEmail string `json:"pending_email,omitempty"`
}

func readAuthState(r *http.Request) flow.AuthSnapshot {
	c, err := r.Cookie(authStateCookie)
	if err != nil || c.Value == "" {
		return flow.AuthSnapshot{View: flow.ViewAuth}
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return flow.AuthSnapshot{View: flow.ViewAuth}
	}
	var st authState
	if err := json.Unmarshal(raw, &st); err != nil {
		return flow.AuthSnapshot{View: flow.ViewAuth}
	}
	return flow.AuthSnapshot{View: flow.ParseAuthView(st.View), PendingEmail: st.PendingEmail}
}

func (s *Server) writeAuthState(w http.ResponseWriter, snap flow.AuthSnapshot) {
	if snap.View == flow.ViewAuth {
		http.SetCookie(w, &http.Cookie{Name: authStateCookie, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})
		return
	}
	raw, err := json.Marshal(authState{View: string(snap.View), PendingEmail: snap.PendingEmail})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authStateCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/auth",
		MaxAge:   int(time.Hour / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
