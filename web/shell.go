package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/screens"
	"go.uber.org/zap"
)

const recentReports = 10

type reportView struct {
	Categories []screens.Category
	Draft      screens.Draft
}

type shellView struct {
	Tabs        []screens.TabItem
	Active      screens.Tab
	Home        screens.HomeScreen
	Leaderboard screens.LeaderboardScreen
	Profile     screens.ProfileScreen
	Report      reportView
	Points      int64
	MyReports   []screens.Report
	// Splash is laid over the first page a browser sees.
	Splash *screens.Splash
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	var splash *screens.Splash
	if _, err := r.Cookie(screens.SplashCookie); err != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     screens.SplashCookie,
			Value:    "1",
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		sp := screens.NewSplash()
		splash = &sp
	}

	tab := screens.ParseTab(r.URL.Query().Get("tab"))
	s.renderShell(w, r, http.StatusOK, tab, screens.Draft{}, nil, splash)
}

func (s *Server) renderShell(w http.ResponseWriter, r *http.Request, status int, tab screens.Tab, draft screens.Draft, toasts []flow.Toast, splash *screens.Splash) {
	view := shellView{
		Tabs:        screens.Tabs(),
		Active:      tab,
		Home:        screens.Home(),
		Leaderboard: screens.Leaderboard(),
		Report:      reportView{Categories: screens.Categories(), Draft: draft},
		Splash:      splash,
	}

	var name, email string
	if sess, ok := identity.SessionFromContext(r.Context()); ok {
		email = sess.Email
		if p, err := s.profiles.GetByUserID(r.Context(), sess.UserID); err == nil {
			name = p.FullName
		} else {
			s.logger.Warn("profile lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		if s.reports != nil {
			if pts, err := s.reports.Points(r.Context(), sess.UserID); err == nil {
				view.Points = pts
			}
			if list, err := s.reports.ListByUser(r.Context(), sess.UserID, recentReports); err == nil {
				view.MyReports = list
			}
		}
	}
	view.Profile = screens.Profile(name, email)

	s.render(w, r, status, "shell", "Mangrove Watch", toasts, view)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, _ := identity.SessionFromContext(r.Context())
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	x := &exchange{}
	form := screens.NewReportForm(s.reports, x)
	form.SelectCategory(r.FormValue("category"))
	form.SetDescription(strings.TrimSpace(r.FormValue("description")))
	form.AddPhotos(uploadedPhotos(r)...)

	loc, hasLoc := formLocation(r)
	status := http.StatusOK
	switch r.FormValue("action") {
	case "locate":
		if hasLoc {
			form.CaptureLocation(loc)
		} else {
			form.LocationDenied()
		}
	case "locate-denied":
		form.LocationDenied()
	default:
		if hasLoc {
			form.RestoreLocation(loc)
		}
		category := form.Draft().Category
		_, err := form.Submit(r.Context(), sess.UserID)
		switch {
		case err == nil:
			s.submitted.WithLabelValues(category, "ok").Inc()
		case errors.Is(err, screens.ErrIncompleteReport):
			s.submitted.WithLabelValues(category, "incomplete").Inc()
			status = http.StatusUnprocessableEntity
		default:
			s.submitted.WithLabelValues(category, "failed").Inc()
			s.logger.Error("report save failed", zap.String("user_id", sess.UserID), zap.Error(err))
			status = http.StatusServiceUnavailable
		}
	}

	s.renderShell(w, r, status, screens.TabReport, form.Draft(), x.Toasts(), nil)
}

func uploadedPhotos(r *http.Request) []screens.Photo {
	if r.MultipartForm == nil {
		return nil
	}
	var out []screens.Photo
	for _, fh := range r.MultipartForm.File["photos"] {
		ct := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "image/") {
			continue
		}
		out = append(out, screens.Photo{Name: fh.Filename, ContentType: ct, Size: fh.Size})
	}
	return out
}

func formLocation(r *http.Request) (screens.Location, bool) {
	lat, err := strconv.ParseFloat(r.FormValue("lat"), 64)
	if err != nil {
		return screens.Location{}, false
	}
	lng, err := strconv.ParseFloat(r.FormValue("lng"), 64)
	if err != nil {
		return screens.Location{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return screens.Location{}, false
	}
	return screens.Location{Lat: lat, Lng: lng}, true
}
