package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/groups"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/storage"
)

// RsoHandlers handles RSO requests under a university
type RsoHandlers struct {
	responder
	rsos GroupService
}

// NewRsoHandlers creates RSO handlers
func NewRsoHandlers(rsos GroupService, metrics *observability.Metrics) *RsoHandlers {
	return &RsoHandlers{responder: responder{metrics: metrics}, rsos: rsos}
}

// DeactivateResponse reports a deactivated RSO and how many memberships
// were closed with it
type DeactivateResponse struct {
	Rso         *groups.Group `json:"rso"`
	Cascaded    bool          `json:"cascaded"`
	Memberships int64         `json:"memberships"`
}

// RegisterRoutes registers RSO routes on the university-scoped subrouter
func (h *RsoHandlers) RegisterRoutes(scoped *mux.Router) {
	scoped.HandleFunc("/rso", h.ListRsos).Methods("GET")
	scoped.Handle("/rso", middleware.RequireAuthFunc(h.CreateRso)).Methods("POST")
	scoped.HandleFunc("/rso/{id:[0-9]+}", h.GetRso).Methods("GET")
	scoped.Handle("/rso/{id:[0-9]+}", middleware.RequireAuthFunc(h.UpdateRso)).Methods("PUT")
	scoped.Handle("/rso/{id:[0-9]+}", middleware.RequireAuthFunc(h.DeleteRso)).Methods("DELETE")
}

// ListRsos lists the RSOs of a university, optionally filtered by name
func (h *RsoHandlers) ListRsos(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}
	includeInactive, err := httputil.ParseQueryBool(r, "include_inactive", false)
	if err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("include_inactive"))
		return
	}
	active := storage.ActiveOnly
	if includeInactive {
		active = storage.AllRows
	}

	list, err := h.rsos.List(r.Context(), orgID, httputil.ParseQueryString(r, "name", ""), active)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeRso, "")
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// CreateRso creates an RSO with the caller as its admin and the listed
// emails as founding members
func (h *RsoHandlers) CreateRso(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}
	var req groups.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := auth.FromContext(r.Context()).User
	req.OrganizationID = orgID
	req.CreatorID = user.ID
	req.CreatorEmail = user.Email

	created, err := h.rsos.Create(r.Context(), permissions.FromContext(r.Context()), req)
	if err != nil {
		h.metrics.ObserveGroupCreation(creationOutcome(err))
		h.fail(w, r, err, audit.ResourceTypeRso, "")
		return
	}
	h.metrics.ObserveGroupCreation("created")

	mutation(r, audit.EventTypeRsoCreate, user.ID, orgID, audit.ResourceTypeRso, strconv.FormatInt(created.Group.ID, 10),
		map[string]interface{}{"name": created.Group.Name, "members": len(created.Memberships)})
	_ = httputil.WriteCreated(w, created)
}

// creationOutcome labels a failed creation: rejected for caller errors,
// error for everything else
func creationOutcome(err error) string {
	if apierrors.From(err).Status < http.StatusInternalServerError {
		return "rejected"
	}
	return "error"
}

// GetRso returns an RSO with its active roster
func (h *RsoHandlers) GetRso(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.rsos.Get(r.Context(), orgID, id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeRso, strconv.FormatInt(id, 10))
		return
	}
	_ = httputil.WriteSuccess(w, detail)
}

// UpdateRso changes an RSO's name or description
func (h *RsoHandlers) UpdateRso(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}
	var req groups.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	perms := permissions.FromContext(r.Context())
	group, err := h.rsos.Update(r.Context(), perms, orgID, id, req)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeRso, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeRsoUpdate, perms.UserID(), orgID, audit.ResourceTypeRso, strconv.FormatInt(id, 10), nil)
	_ = httputil.WriteSuccess(w, group)
}

// DeleteRso deactivates an RSO together with its memberships
func (h *RsoHandlers) DeleteRso(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}

	perms := permissions.FromContext(r.Context())
	result, err := h.rsos.Deactivate(r.Context(), perms, orgID, id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeRso, strconv.FormatInt(id, 10))
		return
	}
	if result.Cascaded {
		h.metrics.ObserveCascade(result.Memberships)
	}

	mutation(r, audit.EventTypeRsoDeactivate, perms.UserID(), orgID, audit.ResourceTypeRso, strconv.FormatInt(id, 10),
		map[string]interface{}{"cascaded": result.Cascaded, "memberships": result.Memberships})
	_ = httputil.WriteSuccess(w, DeactivateResponse{
		Rso:         result.Group,
		Cascaded:    result.Cascaded,
		Memberships: result.Memberships,
	})
}

// parseScopedID reads {universityId} and the named nested id
func parseScopedID(w http.ResponseWriter, r *http.Request, key string) (int64, int64, bool) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return 0, 0, false
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, key)
	if !ok {
		return 0, 0, false
	}
	return orgID, id, true
}
