package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/contextkeys"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/users"
)

// SessionValidator resolves a bearer token to a live session
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Session, error)
}

// UserLoader returns an active user by id
type UserLoader interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// AuthMiddleware authenticates bearer tokens. Requests without an
// Authorization header pass through anonymously; handlers that need a user
// are wrapped with RequireAuth.
type AuthMiddleware struct {
	sessions SessionValidator
	users    UserLoader
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions SessionValidator, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.WriteAPIError(w, apierrors.ErrUserNotAuthenticated)
			return
		}
		token := strings.TrimSpace(parts[1])

		ctx := r.Context()
		session, err := m.sessions.Validate(ctx, token)
		if err != nil {
			httputil.WriteAPIError(w, sessionError(err))
			return
		}

		user, err := m.users.Get(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, apierrors.ErrUserRecordNotFound) {
				httputil.WriteAPIError(w, apierrors.ErrUserNotAuthenticated)
				return
			}
			httputil.WriteAPIError(w, apierrors.ErrServiceUnavailable.Wrap(err))
			return
		}

		authCtx := &auth.AuthContext{User: user, Session: session, Token: token}
		userID := strconv.FormatInt(user.ID, 10)

		ctx = contextkeys.WithAuth(ctx, authCtx)
		ctx = contextkeys.WithUserID(ctx, userID)
		audit.SetActor(ctx, user.ID)
		observability.SetUserID(ctx, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return apierrors.ErrAuthTokenExpired
	case errors.Is(err, auth.ErrInvalidToken):
		return apierrors.ErrUserNotAuthenticated
	default:
		return apierrors.ErrServiceUnavailable.Wrap(err)
	}
}

// RequireAuth rejects anonymous requests with UserNotAuthenticated
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthContext(r).IsAuthenticated() {
			httputil.WriteAPIError(w, apierrors.ErrUserNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthFunc is RequireAuth for handler functions
func RequireAuthFunc(next http.HandlerFunc) http.Handler {
	return RequireAuth(next)
}

// GetAuthContext retrieves the auth context from the request. Anonymous
// requests get nil, which is safe to call methods on.
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return auth.FromContext(r.Context())
}
