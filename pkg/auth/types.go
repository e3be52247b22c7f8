package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/campus/pkg/contextkeys"
	"github.com/platinummonkey/campus/pkg/users"
)

// Session is a login session. The token itself is never stored.
type Session struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuthContext holds authenticated user information
type AuthContext struct {
	User    *users.User
	Session *Session
	Token   string
}

// UserID returns the authenticated user's id, or 0
func (ac *AuthContext) UserID() int64 {
	if ac == nil || ac.User == nil {
		return 0
	}
	return ac.User.ID
}

// IsAuthenticated reports whether a user is attached
func (ac *AuthContext) IsAuthenticated() bool {
	return ac.UserID() > 0
}

// FromContext returns the AuthContext stored by the auth middleware, or nil
func FromContext(ctx context.Context) *AuthContext {
	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return authCtx
}
