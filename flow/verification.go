package flow

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/identity"
)

// VerifyView is the visible view of the email verification page.
type VerifyView string

const (
	VerifyVerifying VerifyView = "verifying"
	VerifySuccess   VerifyView = "success"
	VerifyError     VerifyView = "error"
)

const (
	// InvalidLinkMessage is shown when the link lacks a token or an email.
	InvalidLinkMessage = "Invalid verification link. Please try again."
	// VerifiedToast is announced once after a successful verification.
	VerifiedToast = "Registration successful! Please log in to continue."

	countdownStart    = 3
	countdownInterval = time.Second
	signInPath        = "/auth"
)

type verifyTrigger string

const (
	onVerified verifyTrigger = "verified"
	onFailed   verifyTrigger = "failed"
)

// VerificationState is a point-in-time view of a VerificationController.
type VerificationState struct {
	View      VerifyView `json:"view"`
	Message   string     `json:"message,omitempty"`
	Countdown int        `json:"countdown"`
	Left      bool       `json:"left"`
}

// VerificationController verifies an email link once when mounted and, on
// success, counts down before sending the user to sign in.
//
// The Navigator passed in must not call back into the controller.
type VerificationController struct {
	provider identity.Provider
	nav      Navigator
	notify   Notifier
	clock    Clock
	machine  *Machine[VerifyView, verifyTrigger]

	mountOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}

	mu        sync.Mutex
	message   string
	countdown int
	left      bool
	closed    bool
	ticker    Ticker
	subs      map[chan VerificationState]struct{}
}

// NewVerificationController returns a controller in VerifyVerifying. A nil
// clock uses the wall clock.
func NewVerificationController(p identity.Provider, nav Navigator, n Notifier, clock Clock) *VerificationController {
	if clock == nil {
		clock = SystemClock{}
	}
	return &VerificationController{
		provider: p,
		nav:      orNavigator(nav),
		notify:   orNotifier(n),
		clock:    clock,
		machine: NewMachine(VerifyVerifying,
			Transition[VerifyView, verifyTrigger]{VerifyVerifying, onVerified, VerifySuccess},
			Transition[VerifyView, verifyTrigger]{VerifyVerifying, onFailed, VerifyError},
		),
		stop:      make(chan struct{}),
		countdown: countdownStart,
		subs:      make(map[chan VerificationState]struct{}),
	}
}

// State returns the current state.
func (c *VerificationController) State() VerificationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *VerificationController) stateLocked() VerificationState {
	return VerificationState{
		View:      c.machine.State(),
		Message:   c.message,
		Countdown: c.countdown,
		Left:      c.left,
	}
}

// Mount reads token and email from params and verifies them. Only the first
// call does any work; later calls return the current state.
func (c *VerificationController) Mount(ctx context.Context, params url.Values) VerificationState {
	c.mountOnce.Do(func() { c.mount(ctx, params) })
	return c.State()
}

func (c *VerificationController) mount(ctx context.Context, params url.Values) {
	token := params.Get("token")
	email := params.Get("email")
	if token == "" || email == "" {
		c.fail(InvalidLinkMessage)
		return
	}

	err := invoke(ctx, func(ctx context.Context) error {
		return c.provider.VerifyEmail(ctx, email, token)
	})
	if err != nil {
		c.fail(err.Error())
		return
	}

	c.mu.Lock()
	if _, err := c.machine.Fire(onVerified); err != nil {
		c.mu.Unlock()
		return
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.ticker = c.clock.NewTicker(countdownInterval)
	ticker := c.ticker
	c.publishLocked()
	c.mu.Unlock()

	c.notify.Notify(Toast{Kind: ToastSuccess, Title: VerifiedToast})
	go c.runCountdown(ticker)
}

func (c *VerificationController) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.machine.Fire(onFailed); err != nil {
		return
	}
	c.message = msg
	c.publishLocked()
}

func (c *VerificationController) runCountdown(t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C():
			c.mu.Lock()
			if c.closed || c.left {
				c.mu.Unlock()
				return
			}
			if c.countdown > 0 {
				c.countdown--
			}
			done := c.countdown <= 0
			c.publishLocked()
			c.mu.Unlock()

			if done {
				c.leave()
				return
			}
		}
	}
}

// leave navigates to sign in at most once over the controller's life and
// never after Close.
func (c *VerificationController) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.left {
		return
	}
	c.left = true
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.nav.Navigate(signInPath, true)
	c.publishLocked()
}

// Continue leaves for sign in from the success view.
func (c *VerificationController) Continue() {
	if c.machine.State() != VerifySuccess {
		return
	}
	c.leave()
}

// TryAgain leaves for sign in from the error view.
func (c *VerificationController) TryAgain() {
	if c.machine.State() != VerifyError {
		return
	}
	c.leave()
}

// Subscribe returns a channel that receives the current state immediately
// and every change after it. The channel is closed by Close or cancel.
func (c *VerificationController) Subscribe() (<-chan VerificationState, func()) {
	ch := make(chan VerificationState, countdownStart+4)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ch <- c.stateLocked()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.stateLocked()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *VerificationController) publishLocked() {
	st := c.stateLocked()
	for ch := range c.subs {
		select {
		case ch <- st:
		default:
			// Slow subscriber; it will still see the latest state via State.
		}
	}
}

// Close tears the controller down: the countdown stops and no navigation
// happens afterwards.
func (c *VerificationController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if c.ticker != nil {
			c.ticker.Stop()
		}
		for ch := range c.subs {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
		close(c.stop)
	})
}
