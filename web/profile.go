package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/profile"
	"go.uber.org/zap"
)

type profileView struct {
	View    flow.ProfileView
	Profile profile.Profile
	Draft   profile.Update
	Message string
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	x := &exchange{}
	ctrl := flow.NewProfileController(s.identity, s.profiles, x, x)
	ctrl.Load(r.Context())
	if to, ok := x.Target(); ok {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}
	s.renderProfile(w, r, http.StatusOK, ctrl, x.Toasts())
}

func (s *Server) handleProfileAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	x := &exchange{}
	ctrl := flow.NewProfileController(s.identity, s.profiles, x, x)
	action := r.PostFormValue("action")

	if action == "logout" {
		if err := ctrl.Logout(r.Context()); err != nil {
			s.logger.Warn("sign out failed", zap.Error(err))
		}
		s.clearSessionCookie(w)
		to, ok := x.Target()
		if !ok {
			to = signInPath
		}
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}

	var err error
	if ctrl.Load(r.Context()) {
		switch action {
		case "edit":
			err = ctrl.Edit()
		case "cancel", "retry":
			// Each request loads afresh, which both discards the edit form
			// and retries a failed load.
		case "save":
			if ctrl.View() != flow.ProfileLoaded {
				break
			}
			if err = ctrl.Edit(); err != nil {
				break
			}
			ctrl.SetDraft(profile.Update{
				FullName:     strings.TrimSpace(r.PostFormValue("fullName")),
				MobileNumber: strings.TrimSpace(r.PostFormValue("mobileNumber")),
			})
			err = ctrl.Save(r.Context())
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}
	}

	if to, ok := x.Target(); ok {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	switch {
	case errors.Is(err, flow.ErrInvalidTransition):
		status = http.StatusConflict
	case err != nil:
		status = http.StatusServiceUnavailable
	}
	s.renderProfile(w, r, status, ctrl, x.Toasts())
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, ctrl *flow.ProfileController, toasts []flow.Toast) {
	s.render(w, r, status, "profile", "Profile", toasts, profileView{
		View:    ctrl.View(),
		Profile: ctrl.Profile(),
		Draft:   ctrl.Draft(),
		Message: ctrl.Message(),
	})
}
