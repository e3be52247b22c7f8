package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/campus/pkg/storage"
)

// ErrNotFound is returned when no user matches
var ErrNotFound = errors.New("user not found")

const selectColumns = `SELECT id, first_name, last_name, email, password_hash, logins, created_at, updated_at, inactive_at, inactive_by_id FROM users`

// Store persists users
type Store struct {
	q storage.Querier
}

// NewStore creates a user store over q
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

// Insert creates u and sets its id and timestamps
func (s *Store) Insert(ctx context.Context, u *User) error {
	now := storage.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, email, password_hash, logins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Logins, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get returns a user by id subject to active
func (s *Store) Get(ctx context.Context, id int64, active storage.ActiveFilter) (*User, error) {
	c := &storage.Conditions{}
	c.Eq("id", id)
	active.Apply(c, "inactive_at")
	return s.one(ctx, c)
}

// GetByEmail returns a user by lowercase email subject to active
func (s *Store) GetByEmail(ctx context.Context, email string, active storage.ActiveFilter) (*User, error) {
	c := &storage.Conditions{}
	c.Eq("email", email)
	active.Apply(c, "inactive_at")
	return s.one(ctx, c)
}

// Update writes profile fields and the password hash
func (s *Store) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = storage.Now()
	_, err := s.q.ExecContext(ctx, `
		UPDATE users SET first_name = $1, last_name = $2, email = $3, password_hash = $4, updated_at = $5
		WHERE id = $6
	`, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// RecordLogin increments the login counter
func (s *Store) RecordLogin(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx, `UPDATE users SET logins = logins + 1, updated_at = $1 WHERE id = $2`, storage.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an active user
func (s *Store) Deactivate(ctx context.Context, id, actorID int64, at time.Time) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE users SET inactive_at = $1, inactive_by_id = $2, updated_at = $3
		WHERE id = $4 AND inactive_at IS NULL
	`, at, actorID, at, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) one(ctx context.Context, c *storage.Conditions) (*User, error) {
	var (
		u            User
		inactiveAt   sql.NullTime
		inactiveByID sql.NullInt64
	)
	err := s.q.QueryRowContext(ctx, selectColumns+c.Where(), c.Args()...).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Logins,
		&u.CreatedAt, &u.UpdatedAt, &inactiveAt, &inactiveByID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.InactiveAt = storage.TimePtr(inactiveAt)
	u.InactiveByID = storage.Int64Ptr(inactiveByID)
	return &u, nil
}
