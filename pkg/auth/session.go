package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/campus/pkg/storage"
)

var tracer = otel.Tracer("campus/auth")

var (
	// ErrInvalidToken is returned for malformed, unknown or revoked tokens
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenExpired is returned for sessions past their expiry
	ErrTokenExpired = errors.New("session token expired")
)

// SessionStore persists login sessions
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new session store
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create opens a session for userID lasting ttl. The plaintext token is
// returned once and cannot be recovered later.
func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, *Session, error) {
	ctx, span := tracer.Start(ctx, "auth.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	token, err := NewSessionToken()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token generation failed")
		return "", nil, err
	}

	now := storage.Now()
	session := &Session{
		UserID:      userID,
		TokenHash:   token.Hash,
		TokenPrefix: token.Prefix,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, token_prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, session.UserID, session.TokenHash, session.TokenPrefix, session.ExpiresAt, session.CreatedAt).Scan(&session.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	return token.Plain, session, nil
}

// Validate resolves a token to its live session and records its use
func (s *SessionStore) Validate(ctx context.Context, token string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "auth.ValidateSession")
	defer span.End()

	if !WellFormed(token) {
		return nil, ErrInvalidToken
	}

	session, err := s.get(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil {
		return nil, ErrInvalidToken
	}
	now := storage.Now()
	if session.Expired(now) {
		return nil, ErrTokenExpired
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $1 WHERE id = $2`, now, session.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	session.LastUsedAt = &now
	return session, nil
}

// Revoke ends the session identified by token
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL
	`, storage.Now(), HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInvalidToken
	}
	return nil
}

// RevokeUser ends every open session of a user
func (s *SessionStore) RevokeUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
	`, storage.Now(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return result.RowsAffected()
}

// CleanupExpired deletes sessions that expired or were revoked before now
func (s *SessionStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth.CleanupExpired")
	defer span.End()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $2
	`, now, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cleanup failed")
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return result.RowsAffected()
}

func (s *SessionStore) get(ctx context.Context, hash string) (*Session, error) {
	var (
		session    Session
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, expires_at, created_at, last_used_at, revoked_at
		FROM sessions WHERE token_hash = $1
	`, hash).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.TokenPrefix,
		&session.ExpiresAt, &session.CreatedAt, &lastUsedAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	session.LastUsedAt = storage.TimePtr(lastUsedAt)
	session.RevokedAt = storage.TimePtr(revokedAt)
	return &session, nil
}
