package web

import (
	"errors"
	"net/http"

	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/validate"
	"go.uber.org/zap"
)

const resetPath = "/auth/reset-password"

type resetView struct {
	View    flow.ResetView
	Message string
	// Code is posted back in place of Message.
	Code   string
	Errors map[string]string
}

// resetFailures are the texts the error view can be restored with, keyed
// by the code the page posts back.
var resetFailures = map[string]string{
	"session_missing": mangrove.ErrSessionMissing.Error(),
	"session_expired": mangrove.ErrSessionExpired.Error(),
	"same_password":   mangrove.ErrSamePassword.Error(),
	"weak_password":   mangrove.ErrWeakPassword.Error(),
	"rate_limited":    mangrove.ErrRateLimited.Error(),
	"unavailable":     mangrove.ErrServiceUnavailable.Error(),
	"unexpected":      flow.GenericErrorMessage,
}

func resetFailureCode(msg string) string {
	if msg == "" {
		return ""
	}
	for code, text := range resetFailures {
		if text == msg {
			return code
		}
	}
	return "unexpected"
}

// handleResetPage serves the new-password form. A recovery link carries a
// token that is exchanged for a session once; the browser is then sent to
// the same page without it.
func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request) {
	ctrl := flow.NewResetController(s.identity, nil)

	token := r.URL.Query().Get("token")
	if token == "" {
		s.renderReset(w, r, http.StatusOK, ctrl, nil)
		return
	}

	sess, err := s.identity.ExchangeRecoveryToken(r.Context(), token)
	if err != nil {
		s.logger.Info("recovery link rejected", zap.Error(err))
		s.renderReset(w, r, http.StatusBadRequest, ctrl, []flow.Toast{{
			Kind:        flow.ToastError,
			Title:       "Reset link not accepted",
			Description: err.Error(),
		}})
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, resetPath, http.StatusSeeOther)
}

func (s *Server) handleResetAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	x := &exchange{}
	// An unknown code restores the form instead of the error view.
	ctrl := flow.RestoreReset(s.identity, x, flow.ParseResetView(r.PostFormValue("view")), resetFailures[r.PostFormValue("code")])
	if f, ok := validate.ParseField(r.PostFormValue("edit")); ok {
		ctrl.Edit(f)
	}

	var err error
	switch r.PostFormValue("action") {
	case "submit":
		err = ctrl.Submit(r.Context(), validate.PasswordResetForm{
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
		})
	case "try-again":
		err = ctrl.TryAgain()
	case "continue":
		err = ctrl.Continue()
	case "sign-in":
		ctrl.BackToSignIn()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	if to, ok := x.Target(); ok {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	switch {
	case errors.Is(err, flow.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrInvalidTransition):
		status = http.StatusConflict
	}
	s.renderReset(w, r, status, ctrl, x.Toasts())
}

func (s *Server) renderReset(w http.ResponseWriter, r *http.Request, status int, ctrl *flow.ResetController, toasts []flow.Toast) {
	s.render(w, r, status, "reset", "Reset password", toasts, resetView{
		View:    ctrl.View(),
		Message: ctrl.Message(),
		Code:    resetFailureCode(ctrl.Message()),
		Errors:  ctrl.Errors().Map(),
	})
}
