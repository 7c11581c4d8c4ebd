// Package memory is an in-process account and profile store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/profile"
)

// Store implements mangrove.AccountStore and profile.Store. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]mangrove.Account
	emails   map[string]string
	profiles map[string]profile.Profile
	now      func() time.Time
}

var (
	_ mangrove.AccountStore = (*Store)(nil)
	_ profile.Store         = (*Store)(nil)
)

func New() *Store {
	return &Store{
		accounts: map[string]mangrove.Account{},
		emails:   map[string]string{},
		profiles: map[string]profile.Profile{},
		now:      time.Now,
	}
}

func emailKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Store) CreateAccount(_ context.Context, a mangrove.NewAccount) (mangrove.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(a.Email)
	if _, taken := s.emails[key]; taken {
		return mangrove.Account{}, mangrove.ErrAccountExists
	}
	if _, taken := s.accounts[a.ID]; taken {
		return mangrove.Account{}, mangrove.ErrAccountExists
	}

	now := s.now()
	acct := mangrove.Account{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Status:       a.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[a.ID] = acct
	s.emails[key] = a.ID
	s.profiles[a.ID] = profile.Profile{
		ID:           a.ProfileID,
		UserID:       a.ID,
		FullName:     a.FullName,
		MobileNumber: a.MobileNumber,
		Email:        a.Email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (mangrove.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[emailKey(email)]
	if !ok {
		return mangrove.Account{}, mangrove.ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (mangrove.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return mangrove.Account{}, mangrove.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) UpdateAccountStatus(_ context.Context, id string, status mangrove.AccountStatus) error {
	return s.updateAccount(id, func(a *mangrove.Account) { a.Status = status })
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.updateAccount(id, func(a *mangrove.Account) { a.PasswordHash = hash })
}

func (s *Store) updateAccount(id string, fn func(*mangrove.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return mangrove.ErrAccountNotFound
	}
	fn(&a)
	a.UpdatedAt = s.now()
	s.accounts[id] = a
	return nil
}

func (s *Store) GetByUserID(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateByUserID(_ context.Context, userID string, u profile.Update) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	p.FullName = u.FullName
	p.MobileNumber = u.MobileNumber
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return p, nil
}
