package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/contextkeys"
	"github.com/platinummonkey/campus/pkg/users"
)

type mockSessions struct {
	validateFunc func(ctx context.Context, token string) (*auth.Session, error)
}

func (m *mockSessions) Validate(ctx context.Context, token string) (*auth.Session, error) {
	return m.validateFunc(ctx, token)
}

type mockUsers struct {
	getFunc func(ctx context.Context, id int64) (*users.User, error)
}

func (m *mockUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	return m.getFunc(ctx, id)
}

const goodToken = "campus_good"

func newTestAuthMiddleware() *AuthMiddleware {
	sessions := &mockSessions{validateFunc: func(ctx context.Context, token string) (*auth.Session, error) {
		switch token {
		case goodToken:
			return &auth.Session{ID: 1, UserID: 7}, nil
		case "campus_expired":
			return nil, auth.ErrTokenExpired
		case "campus_orphan":
			return &auth.Session{ID: 2, UserID: 404}, nil
		case "campus_dberror":
			return nil, errors.New("connection reset")
		default:
			return nil, auth.ErrInvalidToken
		}
	}}
	loader := &mockUsers{getFunc: func(ctx context.Context, id int64) (*users.User, error) {
		if id == 7 {
			return &users.User{ID: 7, Email: "knight@ucf.edu"}, nil
		}
		return nil, apierrors.ErrUserRecordNotFound
	}}
	return NewAuthMiddleware(sessions, loader)
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
		wantUser   int64
	}{
		{name: "anonymous passes through", wantStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + goodToken, wantStatus: http.StatusOK, wantUser: 7},
		{name: "lower-case scheme", header: "bearer " + goodToken, wantStatus: http.StatusOK, wantUser: 7},
		{name: "malformed header", header: "Token abc", wantStatus: http.StatusForbidden, wantCode: `"errorCode":102`},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusForbidden, wantCode: `"errorCode":102`},
		{name: "unknown token", header: "Bearer campus_nope", wantStatus: http.StatusForbidden, wantCode: `"errorCode":102`},
		{name: "expired token", header: "Bearer campus_expired", wantStatus: http.StatusUnauthorized, wantCode: `"errorCode":104`},
		{name: "deactivated user", header: "Bearer campus_orphan", wantStatus: http.StatusForbidden, wantCode: `"errorCode":102`},
		{name: "store failure", header: "Bearer campus_dberror", wantStatus: http.StatusServiceUnavailable, wantCode: `"errorCode":2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.AuthContext
			handler := newTestAuthMiddleware().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetAuthContext(r)
				if seen.IsAuthenticated() {
					assert.Equal(t, "7", contextkeys.GetUserID(r.Context()))
				}
				w.WriteHeader(http.StatusOK)
			}))

			r := httptest.NewRequest("GET", "/api/university", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
			assert.Equal(t, tt.wantUser, seen.UserID())
		})
	}
}

func TestRequireAuth(t *testing.T) {
	handler := newTestAuthMiddleware().Handler(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/logout", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"102 | User is not authenticated","errorCode":102,"raw":null}`, w.Body.String())

	r := httptest.NewRequest("POST", "/api/logout", nil)
	r.Header.Set("Authorization", "Bearer "+goodToken)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
