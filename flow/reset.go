package flow

import (
	"context"
	"sync"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/validate"
)

// ResetView is the visible view of the password reset page.
type ResetView string

const (
	ResetForm    ResetView = "form"
	ResetSuccess ResetView = "success"
	ResetError   ResetView = "error"
)

type resetTrigger string

const (
	onResetDone   resetTrigger = "done"
	onResetFailed resetTrigger = "failed"
	onRetry       resetTrigger = "retry"
)

// ResetController sets a new password for the signed-in recovery session.
type ResetController struct {
	provider identity.Provider
	nav      Navigator
	machine  *Machine[ResetView, resetTrigger]
	gate     Gate

	mu      sync.Mutex
	form    validate.PasswordResetForm
	errs    validate.Errors
	message string
}

// NewResetController returns a controller in ResetForm.
func NewResetController(p identity.Provider, nav Navigator) *ResetController {
	return &ResetController{
		provider: p,
		nav:      orNavigator(nav),
		machine: NewMachine(ResetForm,
			Transition[ResetView, resetTrigger]{ResetForm, onResetDone, ResetSuccess},
			Transition[ResetView, resetTrigger]{ResetForm, onResetFailed, ResetError},
			Transition[ResetView, resetTrigger]{ResetError, onRetry, ResetForm},
		),
	}
}

// ParseResetView maps s to a view, falling back to ResetForm.
func ParseResetView(s string) ResetView {
	switch v := ResetView(s); v {
	case ResetSuccess, ResetError:
		return v
	default:
		return ResetForm
	}
}

// RestoreReset rebuilds a controller that was showing view. An error view
// without a message falls back to the form.
func RestoreReset(p identity.Provider, nav Navigator, view ResetView, message string) *ResetController {
	c := NewResetController(p, nav)
	view = ParseResetView(string(view))
	if view == ResetError && message == "" {
		view = ResetForm
	}
	if view == ResetError {
		c.message = message
	}
	c.machine.Restore(view)
	return c
}

func (c *ResetController) View() ResetView { return c.machine.State() }

// Busy reports whether a submit is in flight.
func (c *ResetController) Busy() bool { return c.gate.Busy() }

// Errors returns a copy of the current field errors.
func (c *ResetController) Errors() validate.Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}

// Message is the error text shown in ResetError.
func (c *ResetController) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Form returns the last submitted form.
func (c *ResetController) Form() validate.PasswordResetForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Edit clears the error of f.
func (c *ResetController) Edit(f validate.Field) {
	c.mu.Lock()
	c.errs.Clear(f)
	c.mu.Unlock()
}

// Submit validates form and updates the password.
func (c *ResetController) Submit(ctx context.Context, form validate.PasswordResetForm) error {
	if c.machine.State() != ResetForm {
		return ErrInvalidTransition
	}

	errs := validate.PasswordReset(form)
	c.mu.Lock()
	c.form = form
	c.errs = errs
	c.mu.Unlock()
	if !errs.Empty() {
		return ErrValidation
	}

	if !c.gate.Enter() {
		return ErrBusy
	}
	defer c.gate.Leave()

	err := invoke(ctx, func(ctx context.Context) error {
		return c.provider.UpdatePassword(ctx, form.Password)
	})
	if err != nil {
		c.mu.Lock()
		c.message = err.Error()
		c.mu.Unlock()
		if _, ferr := c.machine.Fire(onResetFailed); ferr != nil {
			return ferr
		}
		return err
	}

	_, err = c.machine.Fire(onResetDone)
	return err
}

// TryAgain returns from ResetError to an empty form.
func (c *ResetController) TryAgain() error {
	if _, err := c.machine.Fire(onRetry); err != nil {
		return err
	}
	c.mu.Lock()
	c.form = validate.PasswordResetForm{}
	c.errs = validate.Errors{}
	c.message = ""
	c.mu.Unlock()
	return nil
}

// Continue enters the main app after a successful reset.
func (c *ResetController) Continue() error {
	if c.machine.State() != ResetSuccess {
		return ErrInvalidTransition
	}
	c.nav.Navigate("/", false)
	return nil
}

// BackToSignIn leaves for the sign-in page.
func (c *ResetController) BackToSignIn() {
	c.nav.Navigate(signInPath, false)
}
