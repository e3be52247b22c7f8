package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/users"
)

// UserHandlers handles profile requests
type UserHandlers struct {
	responder
	users UserService
}

// NewUserHandlers creates user handlers
func NewUserHandlers(users UserService, metrics *observability.Metrics) *UserHandlers {
	return &UserHandlers{responder: responder{metrics: metrics}, users: users}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/users/me/permissions", middleware.RequireAuthFunc(h.GetPermissions)).Methods("GET")
	router.Handle("/users/{id:[0-9]+}", middleware.RequireAuthFunc(h.GetUser)).Methods("GET")
	router.Handle("/users/{id:[0-9]+}", middleware.RequireAuthFunc(h.UpdateUser)).Methods("PUT")
}

// GetUser returns one user
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUser, strconv.FormatInt(id, 10))
		return
	}
	_ = httputil.WriteSuccess(w, user)
}

// UpdateUser changes the caller's own profile
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req users.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	actorID := auth.FromContext(r.Context()).UserID()
	user, err := h.users.Update(r.Context(), actorID, id, req)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUser, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeUserUpdate, actorID, 0, audit.ResourceTypeUser, strconv.FormatInt(id, 10), nil)
	_ = httputil.WriteSuccess(w, user)
}

// GetPermissions returns the caller's resolved grants
func (h *UserHandlers) GetPermissions(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, permissions.FromContext(r.Context()).Snapshot())
}
