package flow

import (
	"context"
	"sync"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/validate"
)

// AuthView is the visible view of the sign-in page.
type AuthView string

const (
	ViewAuth           AuthView = "auth"
	ViewEmailSent      AuthView = "email-sent"
	ViewForgotPassword AuthView = "forgot-password"
)

// ParseAuthView maps a view name to an AuthView, defaulting to ViewAuth.
func ParseAuthView(s string) AuthView {
	switch AuthView(s) {
	case ViewEmailSent, ViewForgotPassword:
		return AuthView(s)
	default:
		return ViewAuth
	}
}

type authTrigger string

const (
	onRegistered     authTrigger = "registered"
	onForgotPassword authTrigger = "forgot-password"
	onBack           authTrigger = "back"
)

func newAuthMachine() *Machine[AuthView, authTrigger] {
	return NewMachine(ViewAuth,
		Transition[AuthView, authTrigger]{ViewAuth, onRegistered, ViewEmailSent},
		Transition[AuthView, authTrigger]{ViewAuth, onForgotPassword, ViewForgotPassword},
		Transition[AuthView, authTrigger]{ViewEmailSent, onBack, ViewAuth},
		Transition[AuthView, authTrigger]{ViewForgotPassword, onBack, ViewAuth},
	)
}

// AuthSnapshot is the part of an AuthController that must survive between
// page renders.
type AuthSnapshot struct {
	View         AuthView
	PendingEmail string
}

// AuthController manages the registration, login, email-sent and
// forgot-password views. Registration and login share one error set.
type AuthController struct {
	provider identity.Provider
	nav      Navigator
	notify   Notifier
	machine  *Machine[AuthView, authTrigger]
	gate     Gate

	mu           sync.Mutex
	errs         validate.Errors
	pendingEmail string
}

// NewAuthController returns a controller in ViewAuth.
func NewAuthController(p identity.Provider, nav Navigator, n Notifier) *AuthController {
	return &AuthController{
		provider: p,
		nav:      orNavigator(nav),
		notify:   orNotifier(n),
		machine:  newAuthMachine(),
	}
}

// RestoreAuth rebuilds a controller from a snapshot.
func RestoreAuth(p identity.Provider, nav Navigator, n Notifier, s AuthSnapshot) *AuthController {
	c := NewAuthController(p, nav, n)
	view := ParseAuthView(string(s.View))
	if view == ViewEmailSent && s.PendingEmail == "" {
		view = ViewAuth
	}
	c.machine.Restore(view)
	c.pendingEmail = s.PendingEmail
	return c
}

// Snapshot captures the view and pending email.
func (c *AuthController) Snapshot() AuthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return AuthSnapshot{View: c.machine.State(), PendingEmail: c.pendingEmail}
}

func (c *AuthController) View() AuthView { return c.machine.State() }

// Errors returns a copy of the current field errors.
func (c *AuthController) Errors() validate.Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}

// PendingEmail is the address awaiting verification.
func (c *AuthController) PendingEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingEmail
}

// Busy reports whether a submit is in flight.
func (c *AuthController) Busy() bool { return c.gate.Busy() }

// Edit clears the error of f, leaving every other field as is.
func (c *AuthController) Edit(f validate.Field) {
	c.mu.Lock()
	c.errs.Clear(f)
	c.mu.Unlock()
}

func (c *AuthController) setErrors(errs validate.Errors) {
	c.mu.Lock()
	c.errs = errs
	c.mu.Unlock()
}

// SubmitRegistration validates form and, when it passes, signs the user up
// and moves to ViewEmailSent.
func (c *AuthController) SubmitRegistration(ctx context.Context, form validate.RegistrationForm) error {
	if !c.machine.Can(onRegistered) {
		return ErrInvalidTransition
	}

	errs := validate.Registration(form)
	c.setErrors(errs)
	if !errs.Empty() {
		return ErrValidation
	}

	if !c.gate.Enter() {
		return ErrBusy
	}
	defer c.gate.Leave()

	err := invoke(ctx, func(ctx context.Context) error {
		return c.provider.SignUp(ctx, identity.SignUpRequest{
			Email:        form.Email,
			Password:     form.Password,
			FullName:     form.FullName,
			MobileNumber: form.MobileNumber,
		})
	})
	if err != nil {
		c.notify.Notify(Toast{Kind: ToastError, Title: "Sign up failed", Description: err.Error()})
		return err
	}

	c.mu.Lock()
	c.pendingEmail = form.Email
	c.mu.Unlock()
	_, err = c.machine.Fire(onRegistered)
	return err
}

// SubmitLogin validates form and signs in. On success the user leaves the
// flow for the main app and the issued session is returned.
func (c *AuthController) SubmitLogin(ctx context.Context, form validate.LoginForm) (identity.Session, error) {
	if c.machine.State() != ViewAuth {
		return identity.Session{}, ErrInvalidTransition
	}

	errs := validate.Login(form)
	c.setErrors(errs)
	if !errs.Empty() {
		return identity.Session{}, ErrValidation
	}

	if !c.gate.Enter() {
		return identity.Session{}, ErrBusy
	}
	defer c.gate.Leave()

	var sess identity.Session
	err := invoke(ctx, func(ctx context.Context) error {
		var err error
		sess, err = c.provider.SignIn(ctx, form.Email, form.Password)
		return err
	})
	if err != nil {
		c.notify.Notify(Toast{Kind: ToastError, Title: "Sign in failed", Description: err.Error()})
		return identity.Session{}, err
	}

	c.nav.Navigate("/", true)
	return sess, nil
}

// ShowForgotPassword switches to the forgot-password view.
func (c *AuthController) ShowForgotPassword() error {
	_, err := c.machine.Fire(onForgotPassword)
	return err
}

// SubmitForgotPassword requests a reset link for email. The view does not
// change so the request can be repeated.
func (c *AuthController) SubmitForgotPassword(ctx context.Context, email string) error {
	if c.machine.State() != ViewForgotPassword {
		return ErrInvalidTransition
	}
	if !c.gate.Enter() {
		return ErrBusy
	}
	defer c.gate.Leave()

	err := invoke(ctx, func(ctx context.Context) error {
		return c.provider.ResetPassword(ctx, email)
	})
	if err != nil {
		c.notify.Notify(Toast{Kind: ToastError, Title: "Reset request failed", Description: err.Error()})
		return err
	}
	c.notify.Notify(Toast{
		Kind:        ToastSuccess,
		Title:       "Check your email",
		Description: "If an account exists for that address, a reset link is on its way.",
	})
	return nil
}

// Resend sends the verification email to the pending address again.
func (c *AuthController) Resend(ctx context.Context) error {
	if c.machine.State() != ViewEmailSent {
		return ErrInvalidTransition
	}
	if !c.gate.Enter() {
		return ErrBusy
	}
	defer c.gate.Leave()

	email := c.PendingEmail()
	err := invoke(ctx, func(ctx context.Context) error {
		return c.provider.ResendVerificationEmail(ctx, email)
	})
	if err != nil {
		c.notify.Notify(Toast{Kind: ToastError, Title: "Could not resend email", Description: err.Error()})
		return err
	}
	c.notify.Notify(Toast{Kind: ToastSuccess, Title: "Verification email sent", Description: "Check your inbox for the new link."})
	return nil
}

// Back returns to ViewAuth from the email-sent or forgot-password views.
func (c *AuthController) Back() error {
	_, err := c.machine.Fire(onBack)
	return err
}
