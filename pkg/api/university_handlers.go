package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/media"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/orgs"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
	"github.com/platinummonkey/campus/pkg/storage"
)

// UniversityHandlers handles university requests
type UniversityHandlers struct {
	responder
	universities orgs.Service
	images       uploader
}

// NewUniversityHandlers creates university handlers. images may be nil, in
// which case uploads answer 503.
func NewUniversityHandlers(universities orgs.Service, images media.Store, maxUploadBytes int64, metrics *observability.Metrics) *UniversityHandlers {
	return &UniversityHandlers{
		responder:    responder{metrics: metrics},
		universities: universities,
		images:       newUploader(images, maxUploadBytes),
	}
}

// RegisterRoutes registers the top-level university routes. Routes under a
// university id go on the scoped subrouter.
func (h *UniversityHandlers) RegisterRoutes(router, scoped *mux.Router) {
	router.HandleFunc("/university", h.ListUniversities).Methods("GET")
	router.Handle("/university", middleware.RequireAuthFunc(h.CreateUniversity)).Methods("POST")

	scoped.HandleFunc("", h.GetUniversity).Methods("GET")
	scoped.Handle("", middleware.RequireAuthFunc(h.UpdateUniversity)).Methods("PUT")
	scoped.Handle("", middleware.RequireAuthFunc(h.DeleteUniversity)).Methods("DELETE")
	scoped.Handle("/image", middleware.RequireAuthFunc(h.UploadImage)).Methods("PUT")
}

// ListUniversities lists universities. mine=true restricts the result to
// universities where the caller holds organization-level standing.
func (h *UniversityHandlers) ListUniversities(w http.ResponseWriter, r *http.Request) {
	mine, err := httputil.ParseQueryBool(r, "mine", false)
	if err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("mine"))
		return
	}
	includeInactive, err := httputil.ParseQueryBool(r, "include_inactive", false)
	if err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("include_inactive"))
		return
	}

	filter := orgs.ListFilter{Name: httputil.ParseQueryString(r, "name", "")}
	if includeInactive {
		filter.Active = storage.AllRows
	}
	if mine {
		userID := auth.FromContext(r.Context()).UserID()
		if userID <= 0 {
			httputil.WriteAPIError(w, apierrors.ErrUserNotAuthenticated)
			return
		}
		filter.UserID = &userID
	}

	list, err := h.universities.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, "")
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// CreateUniversity creates a university owned by the caller
func (h *UniversityHandlers) CreateUniversity(w http.ResponseWriter, r *http.Request) {
	var req orgs.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	actorID := auth.FromContext(r.Context()).UserID()
	org, err := h.universities.Create(r.Context(), actorID, req)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, "")
		return
	}

	mutation(r, audit.EventTypeUniversityCreate, actorID, org.ID, audit.ResourceTypeUniversity, strconv.FormatInt(org.ID, 10),
		map[string]interface{}{"name": org.Name})
	_ = httputil.WriteCreated(w, org)
}

// GetUniversity returns one university
func (h *UniversityHandlers) GetUniversity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}

	org, err := h.universities.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, strconv.FormatInt(id, 10))
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

// UpdateUniversity changes descriptive fields
func (h *UniversityHandlers) UpdateUniversity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}
	var req orgs.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	perms := permissions.FromContext(r.Context())
	org, err := h.universities.Update(r.Context(), perms, id, req)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeUniversityUpdate, perms.UserID(), id, audit.ResourceTypeUniversity, strconv.FormatInt(id, 10), nil)
	_ = httputil.WriteSuccess(w, org)
}

// DeleteUniversity deactivates a university
func (h *UniversityHandlers) DeleteUniversity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}

	perms := permissions.FromContext(r.Context())
	org, err := h.universities.Deactivate(r.Context(), perms, id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeUniversityDeactivate, perms.UserID(), id, audit.ResourceTypeUniversity, strconv.FormatInt(id, 10), nil)
	_ = httputil.WriteSuccess(w, org)
}

// UploadImage stores a multipart "image" and sets it as the university image
func (h *UniversityHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}
	resourceID := strconv.FormatInt(id, 10)

	perms := permissions.FromContext(r.Context())
	// checked before the upload so unauthorized callers never write to the bucket
	if !perms.Allowed(roles.ActionUniversityUpdate, permissions.ScopeOrganization, id) {
		h.fail(w, r, apierrors.ErrInvalidPermissionForAction, audit.ResourceTypeUniversity, resourceID)
		return
	}

	url, err := h.images.upload(r, fmt.Sprintf("universities/%d", id))
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, resourceID)
		return
	}

	org, err := h.universities.SetImage(r.Context(), perms, id, url)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeUniversity, resourceID)
		return
	}

	mutation(r, audit.EventTypeUniversityUpdate, perms.UserID(), id, audit.ResourceTypeUniversity, resourceID,
		map[string]interface{}{"image_url": url})
	_ = httputil.WriteSuccess(w, org)
}
