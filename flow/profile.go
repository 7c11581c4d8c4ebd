package flow

import (
	"context"
	"sync"

	"github.com/mangrovewatch/mangrove/identity"
	"github.com/mangrovewatch/mangrove/profile"
)

// ProfileView is the visible view of the profile page.
type ProfileView string

const (
	ProfileLoading ProfileView = "loading"
	ProfileLoaded  ProfileView = "loaded"
	ProfileEditing ProfileView = "editing"
	ProfileFailed  ProfileView = "failed"
)

const (
	ProfileLoadFailed = "Failed to load profile data"
	ProfileSaved      = "Profile updated successfully!"
	ProfileSaveFailed = "Failed to update profile"
)

type profileTrigger string

const (
	onLoaded     profileTrigger = "loaded"
	onLoadFailed profileTrigger = "load-failed"
	onEdit       profileTrigger = "edit"
	onSaved      profileTrigger = "saved"
	onCancel     profileTrigger = "cancel"
	onReload     profileTrigger = "reload"
)

// ProfileController shows and edits the signed-in user's profile.
type ProfileController struct {
	provider identity.Provider
	store    profile.Store
	nav      Navigator
	notify   Notifier
	machine  *Machine[ProfileView, profileTrigger]
	gate     Gate

	mu      sync.Mutex
	current profile.Profile
	draft   profile.Update
	message string
}

// NewProfileController returns a controller in ProfileLoading.
func NewProfileController(p identity.Provider, store profile.Store, nav Navigator, n Notifier) *ProfileController {
	return &ProfileController{
		provider: p,
		store:    store,
		nav:      orNavigator(nav),
		notify:   orNotifier(n),
		machine: NewMachine(ProfileLoading,
			Transition[ProfileView, profileTrigger]{ProfileLoading, onLoaded, ProfileLoaded},
			Transition[ProfileView, profileTrigger]{ProfileLoading, onLoadFailed, ProfileFailed},
			Transition[ProfileView, profileTrigger]{ProfileFailed, onReload, ProfileLoading},
			Transition[ProfileView, profileTrigger]{ProfileLoaded, onEdit, ProfileEditing},
			Transition[ProfileView, profileTrigger]{ProfileEditing, onSaved, ProfileLoaded},
			Transition[ProfileView, profileTrigger]{ProfileEditing, onCancel, ProfileLoaded},
		),
	}
}

func (c *ProfileController) View() ProfileView { return c.machine.State() }

// Profile returns the last loaded profile.
func (c *ProfileController) Profile() profile.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Draft returns the values in the edit form.
func (c *ProfileController) Draft() profile.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Message is the error text shown in ProfileFailed.
func (c *ProfileController) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Load fetches the profile of the session in ctx. Without a session the
// user is sent to sign in and false is returned.
func (c *ProfileController) Load(ctx context.Context) bool {
	sess, ok := identity.SessionFromContext(ctx)
	if !ok {
		c.nav.Navigate(signInPath, false)
		return false
	}

	var p profile.Profile
	err := invoke(ctx, func(ctx context.Context) error {
		var err error
		p, err = c.store.GetByUserID(ctx, sess.UserID)
		return err
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.message = ProfileLoadFailed
		_, _ = c.machine.Fire(onLoadFailed)
		return true
	}
	c.current = p
	c.draft = profile.Update{FullName: p.FullName, MobileNumber: p.MobileNumber}
	c.message = ""
	_, _ = c.machine.Fire(onLoaded)
	return true
}

// Retry reloads after a failed load.
func (c *ProfileController) Retry(ctx context.Context) error {
	if _, err := c.machine.Fire(onReload); err != nil {
		return err
	}
	c.Load(ctx)
	return nil
}

// Edit opens the edit form.
func (c *ProfileController) Edit() error {
	_, err := c.machine.Fire(onEdit)
	return err
}

// SetDraft replaces the edit form values.
func (c *ProfileController) SetDraft(u profile.Update) {
	c.mu.Lock()
	c.draft = u
	c.mu.Unlock()
}

// Cancel discards the edit form and restores the stored values.
func (c *ProfileController) Cancel() error {
	if _, err := c.machine.Fire(onCancel); err != nil {
		return err
	}
	c.mu.Lock()
	c.draft = profile.Update{FullName: c.current.FullName, MobileNumber: c.current.MobileNumber}
	c.mu.Unlock()
	return nil
}

// Save writes the draft. On failure the form stays open.
func (c *ProfileController) Save(ctx context.Context) error {
	if c.machine.State() != ProfileEditing {
		return ErrInvalidTransition
	}
	sess, ok := identity.SessionFromContext(ctx)
	if !ok {
		c.nav.Navigate(signInPath, false)
		return ErrInvalidTransition
	}
	if !c.gate.Enter() {
		return ErrBusy
	}
	defer c.gate.Leave()

	draft := c.Draft()
	var p profile.Profile
	err := invoke(ctx, func(ctx context.Context) error {
		var err error
		p, err = c.store.UpdateByUserID(ctx, sess.UserID, draft)
		return err
	})
	if err != nil {
		c.notify.Notify(Toast{Kind: ToastError, Title: ProfileSaveFailed})
		return err
	}

	c.mu.Lock()
	c.current = p
	c.mu.Unlock()
	c.notify.Notify(Toast{Kind: ToastSuccess, Title: ProfileSaved})
	_, err = c.machine.Fire(onSaved)
	return err
}

// Logout signs out and returns to the sign-in page.
func (c *ProfileController) Logout(ctx context.Context) error {
	err := invoke(ctx, c.provider.SignOut)
	c.nav.Navigate(signInPath, false)
	return err
}
