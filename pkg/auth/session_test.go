package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/contextkeys"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/users"
)

func TestSessionStore_CreateAndValidate(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(storage.NewTestDB(t))

	token, session, err := store.Create(ctx, 42, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.NotEqual(t, token, session.TokenHash)
	assert.True(t, strings.HasPrefix(token, session.TokenPrefix))

	got, err := store.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, int64(42), got.UserID)
	assert.NotNil(t, got.LastUsedAt)
}

func TestSessionStore_ValidateFailures(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(storage.NewTestDB(t))

	expired, _, err := store.Create(ctx, 1, -time.Minute)
	require.NoError(t, err)
	revoked, _, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, revoked))

	unknown, err := NewSessionToken()
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"malformed", "not-a-token", ErrInvalidToken},
		{"unknown", unknown.Plain, ErrInvalidToken},
		{"revoked", revoked, ErrInvalidToken},
		{"expired", expired, ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Validate(ctx, tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSessionStore_Revoke(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(storage.NewTestDB(t))

	token, _, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))
	assert.True(t, errors.Is(store.Revoke(ctx, token), ErrInvalidToken))

	_, _, err = store.Create(ctx, 2, time.Hour)
	require.NoError(t, err)
	_, _, err = store.Create(ctx, 2, time.Hour)
	require.NoError(t, err)
	n, err := store.RevokeUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSessionStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(storage.NewTestDB(t))

	live, _, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	_, _, err = store.Create(ctx, 1, -time.Hour)
	require.NoError(t, err)
	revoked, _, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, revoked))

	n, err := store.CleanupExpired(ctx, storage.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.Validate(ctx, live)
	assert.NoError(t, err)
}

func TestSessionStore_CreateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO sessions").WillReturnError(errors.New("disk full"))

	_, _, err = NewSessionStore(db).Create(context.Background(), 1, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthContext(t *testing.T) {
	var nilCtx *AuthContext
	assert.Equal(t, int64(0), nilCtx.UserID())
	assert.False(t, nilCtx.IsAuthenticated())
	assert.False(t, (&AuthContext{}).IsAuthenticated())

	authCtx := &AuthContext{User: &users.User{ID: 9}}
	assert.True(t, authCtx.IsAuthenticated())

	ctx := contextkeys.WithAuth(context.Background(), authCtx)
	assert.Same(t, authCtx, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now}
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}
