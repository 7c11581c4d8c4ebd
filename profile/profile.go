// Package profile defines user profile records and the store that keeps
// them, keyed by the owning user's id.
package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no profile exists for a user.
var ErrNotFound = errors.New("profile: not found")

// Profile is the public part of an account.
type Profile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	MobileNumber string    `json:"mobile_number"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Update is the editable subset of Profile.
type Update struct {
	FullName     string
	MobileNumber string
}

// Store reads and writes profiles. UpdateByUserID stamps updated_at.
type Store interface {
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	UpdateByUserID(ctx context.Context, userID string, u Update) (Profile, error)
}
