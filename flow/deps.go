package flow

import (
	"context"
	"errors"
	"time"
)

// GenericErrorMessage replaces errors that are not safe to show the user.
const GenericErrorMessage = "An unexpected error occurred. Please try again."

// ErrUnexpected is reported when a provider call panics or is cut short by
// its context.
var ErrUnexpected = errors.New(GenericErrorMessage)

// Navigator leaves the current flow. With replace set the current history
// entry is overwritten so back-navigation cannot return to it.
type Navigator interface {
	Navigate(to string, replace bool)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(to string, replace bool)

func (f NavigatorFunc) Navigate(to string, replace bool) { f(to, replace) }

// ToastKind selects how a notification is styled.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Toast is a transient notification.
type Toast struct {
	Kind        ToastKind `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
}

// Notifier shows toasts.
type Notifier interface {
	Notify(Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

type discardNavigator struct{}

func (discardNavigator) Navigate(string, bool) {}

type discardNotifier struct{}

func (discardNotifier) Notify(Toast) {}

func orNavigator(n Navigator) Navigator {
	if n == nil {
		return discardNavigator{}
	}
	return n
}

func orNotifier(n Notifier) Notifier {
	if n == nil {
		return discardNotifier{}
	}
	return n
}

// invoke runs a provider operation. A returned error is passed through
// unchanged; a panic or a context error becomes ErrUnexpected.
func invoke(ctx context.Context, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrUnexpected
		}
	}()

	err = op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUnexpected
	}
	return err
}
