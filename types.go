package mangrove

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus uint8

const (
	StatusPendingVerification AccountStatus = iota + 1
	StatusActive
	StatusDisabled
)

func (s AccountStatus) String() string {
	switch s {
	case StatusPendingVerification:
		return "pending_verification"
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseAccountStatus is the inverse of AccountStatus.String.
func ParseAccountStatus(s string) AccountStatus {
	switch s {
	case "pending_verification":
		return StatusPendingVerification
	case "active":
		return StatusActive
	case "disabled":
		return StatusDisabled
	default:
		return 0
	}
}

// Account is the credential record of a user.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount is what SignUp hands to AccountStore.CreateAccount.
type NewAccount struct {
	ID           string
	ProfileID    string
	Email        string
	PasswordHash string
	FullName     string
	MobileNumber string
	Status       AccountStatus
}

// AccountStore persists accounts. CreateAccount must create the account and
// its profile atomically and return ErrAccountExists for a taken email.
// Lookups return ErrAccountNotFound.
type AccountStore interface {
	CreateAccount(ctx context.Context, a NewAccount) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status AccountStatus) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
