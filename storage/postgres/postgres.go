// Package postgres stores accounts and profiles in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/profile"
)

const uniqueViolation = "23505"

// Open connects a pool and pings it.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Store implements mangrove.AccountStore and profile.Store.
type Store struct {
	db *pgxpool.Pool
}

var (
	_ mangrove.AccountStore = (*Store)(nil)
	_ profile.Store         = (*Store)(nil)
)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateAccount(ctx context.Context, a mangrove.NewAccount) (mangrove.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return mangrove.Account{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertAccount = `
		INSERT INTO accounts (id, email, password_hash, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	acct := mangrove.Account{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Status:       a.Status,
	}
	err = tx.QueryRow(ctx, insertAccount, a.ID, a.Email, a.PasswordHash, a.Status.String()).
		Scan(&acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return mangrove.Account{}, mangrove.ErrAccountExists
		}
		return mangrove.Account{}, fmt.Errorf("postgres: insert account: %w", err)
	}

	const insertProfile = `
		INSERT INTO profiles (id, user_id, full_name, mobile_number)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertProfile, a.ProfileID, a.ID, a.FullName, a.MobileNumber); err != nil {
		return mangrove.Account{}, fmt.Errorf("postgres: insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mangrove.Account{}, fmt.Errorf("postgres: commit: %w", err)
	}
	return acct, nil
}

const selectAccount = `
	SELECT id, email, password_hash, status, created_at, updated_at
	FROM accounts`

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (mangrove.Account, error) {
	return s.getAccount(ctx, selectAccount+` WHERE lower(email) = lower($1)`, email)
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (mangrove.Account, error) {
	return s.getAccount(ctx, selectAccount+` WHERE id = $1`, id)
}

func (s *Store) getAccount(ctx context.Context, query string, arg string) (mangrove.Account, error) {
	var (
		a      mangrove.Account
		status string
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return mangrove.Account{}, mangrove.ErrAccountNotFound
	}
	if err != nil {
		return mangrove.Account{}, fmt.Errorf("postgres: get account: %w", err)
	}
	a.Status = mangrove.ParseAccountStatus(status)
	return a, nil
}

func (s *Store) UpdateAccountStatus(ctx context.Context, id string, status mangrove.AccountStatus) error {
	const q = `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, q, status.String(), id)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const q = `UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, q, hash, id)
}

func (s *Store) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mangrove.ErrAccountNotFound
	}
	return nil
}

const selectProfile = `
	SELECT p.id, p.user_id, p.full_name, p.mobile_number, a.email, p.created_at, p.updated_at
	FROM profiles p
	JOIN accounts a ON a.id = p.user_id
	WHERE p.user_id = $1`

func (s *Store) GetByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile
	err := s.db.QueryRow(ctx, selectProfile, userID).
		Scan(&p.ID, &p.UserID, &p.FullName, &p.MobileNumber, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("postgres: get profile: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateByUserID(ctx context.Context, userID string, u profile.Update) (profile.Profile, error) {
	const q = `
		UPDATE profiles
		SET full_name = $1, mobile_number = $2, updated_at = NOW()
		WHERE user_id = $3`
	tag, err := s.db.Exec(ctx, q, u.FullName, u.MobileNumber, userID)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("postgres: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	return s.GetByUserID(ctx, userID)
}
