package web

import (
	"errors"
	"net/http"

	"github.com/mangrovewatch/mangrove/flow"
	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/validate"
)

type authView struct {
	View         flow.AuthView
	PendingEmail string
	Errors       map[string]string
	// Mode picks the sign-in or registration tab of the auth view.
	Mode string
	Form map[string]string
}

func (s *Server) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ctrl := flow.RestoreAuth(s.identity, nil, nil, readAuthState(r))
	s.renderAuth(w, r, http.StatusOK, ctrl, nil, r.URL.Query().Get("mode"), nil)
}

func (s *Server) handleAuthAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	x := &exchange{}
	ctrl := flow.RestoreAuth(s.identity, x, x, readAuthState(r))
	mode := r.PostFormValue("mode")
	values := map[string]string{
		"fullName":     r.PostFormValue("fullName"),
		"email":        r.PostFormValue("email"),
		"mobileNumber": r.PostFormValue("mobileNumber"),
	}
	if f, ok := validate.ParseField(r.PostFormValue("edit")); ok {
		ctrl.Edit(f)
	}

	var err error
	switch r.PostFormValue("action") {
	case "register":
		mode = "register"
		err = ctrl.SubmitRegistration(r.Context(), validate.RegistrationForm{
			FullName:        values["fullName"],
			Email:           values["email"],
			MobileNumber:    values["mobileNumber"],
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
		})
	case "login":
		mode = "login"
		var sess identity.Session
		sess, err = ctrl.SubmitLogin(r.Context(), validate.LoginForm{
			Email:    values["email"],
			Password: r.PostFormValue("password"),
		})
		if err == nil {
			s.setSessionCookie(w, sess)
		}
	case "forgot":
		err = ctrl.ShowForgotPassword()
	case "forgot-submit":
		err = ctrl.SubmitForgotPassword(r.Context(), values["email"])
	case "resend":
		err = ctrl.Resend(r.Context())
	case "back":
		err = ctrl.Back()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	s.writeAuthState(w, ctrl.Snapshot())
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
	s.renderAuth(w, r, status, ctrl, x.Toasts(), mode, values)
}

func (s *Server) renderAuth(w http.ResponseWriter, r *http.Request, status int, ctrl *flow.AuthController, toasts []flow.Toast, mode string, values map[string]string) {
	if mode != "register" {
		mode = "login"
	}
	title := "Sign in"
	switch ctrl.View() {
	case flow.ViewEmailSent:
		title = "Check your email"
	case flow.ViewForgotPassword:
		title = "Forgot password"
	}
	s.render(w, r, status, "auth", title, toasts, authView{
		View:         ctrl.View(),
		PendingEmail: ctrl.PendingEmail(),
		Errors:       ctrl.Errors().Map(),
		Mode:         mode,
		Form:         values,
	})
}
