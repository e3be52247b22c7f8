package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/users"
)

// AuthHandlers handles signup, login and logout
type AuthHandlers struct {
	responder
	users        UserService
	sessions     SessionService
	sessionTTL   time.Duration
	loginLimiter middleware.Limiter
}

// NewAuthHandlers creates auth handlers. A nil loginLimiter disables login
// throttling.
func NewAuthHandlers(users UserService, sessions SessionService, sessionTTL time.Duration, loginLimiter middleware.Limiter, metrics *observability.Metrics) *AuthHandlers {
	return &AuthHandlers{
		responder:    responder{metrics: metrics},
		users:        users,
		sessions:     sessions,
		sessionTTL:   sessionTTL,
		loginLimiter: loginLimiter,
	}
}

// LoginRequest carries credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login. The token is only ever
// shown here.
type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *users.User `json:"user"`
}

// RegisterRoutes registers auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.Login)
	if h.loginLimiter != nil {
		login = middleware.LoginRateLimit(h.loginLimiter)(login)
	}

	router.HandleFunc("/signup", h.Signup).Methods("POST")
	router.Handle("/login", login).Methods("POST")
	router.Handle("/logout", middleware.RequireAuthFunc(h.Logout)).Methods("POST")
}

// Signup creates an account enrolled in a university and signs it in
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req users.SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.users.Signup(ctx, req)
	if err != nil {
		_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthSignup, nil, audit.EventStatusFailure, apierrors.From(err).Message)
		h.fail(w, r, err, audit.ResourceTypeUser, "")
		return
	}
	_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthSignup, &user.ID, audit.EventStatusSuccess, "signup")

	resp, err := h.startSession(r, user)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeSession, "")
		return
	}
	_ = httputil.WriteCreated(w, resp)
}

// Login exchanges credentials for a session token
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteAPIError(w, apierrors.Missing("email", "password"))
		return
	}

	ctx := r.Context()
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.metrics.ObserveLogin("failure")
		_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLoginFailed, nil, audit.EventStatusFailure,
			"login failed for "+users.NormalizeEmail(req.Email))
		h.fail(w, r, err, audit.ResourceTypeSession, "")
		return
	}

	resp, err := h.startSession(r, user)
	if err != nil {
		h.metrics.ObserveLogin("error")
		h.fail(w, r, err, audit.ResourceTypeSession, "")
		return
	}

	h.metrics.ObserveLogin("success")
	_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogin, &user.ID, audit.EventStatusSuccess, "login")
	_ = httputil.WriteSuccess(w, resp)
}

// Logout revokes the caller's session
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	ctx := r.Context()

	if err := h.sessions.Revoke(ctx, authCtx.Token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			err = apierrors.ErrUserNotAuthenticated
		}
		h.fail(w, r, err, audit.ResourceTypeSession, "")
		return
	}
	userID := authCtx.UserID()
	_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogout, &userID, audit.EventStatusSuccess, "logout")
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) startSession(r *http.Request, user *users.User) (*SessionResponse, error) {
	token, session, err := h.sessions.Create(r.Context(), user.ID, h.sessionTTL)
	if err != nil {
		return nil, apierrors.ErrServiceUnavailable.Wrap(err)
	}
	return &SessionResponse{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}
