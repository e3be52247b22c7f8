package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/events"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/media"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/roles"
)

// EventHandlers handles events and their comments under a university.
// Reads are open to anonymous callers and filtered by visibility.
type EventHandlers struct {
	responder
	events EventService
	images uploader
}

// NewEventHandlers creates event handlers
func NewEventHandlers(svc EventService, images media.Store, maxUploadBytes int64, metrics *observability.Metrics) *EventHandlers {
	return &EventHandlers{
		responder: responder{metrics: metrics},
		events:    svc,
		images:    newUploader(images, maxUploadBytes),
	}
}

// CommentRequest is the body of comment create and update
type CommentRequest struct {
	Message string `json:"message"`
}

// RegisterRoutes registers event and comment routes on the university-scoped
// subrouter
func (h *EventHandlers) RegisterRoutes(scoped *mux.Router) {
	scoped.HandleFunc("/event", h.ListEvents).Methods("GET")
	scoped.Handle("/event", middleware.RequireAuthFunc(h.CreateEvent)).Methods("POST")
	scoped.HandleFunc("/event/{id:[0-9]+}", h.GetEvent).Methods("GET")
	scoped.Handle("/event/{id:[0-9]+}", middleware.RequireAuthFunc(h.DeleteEvent)).Methods("DELETE")
	scoped.Handle("/event/{id:[0-9]+}/image", middleware.RequireAuthFunc(h.UploadImage)).Methods("PUT")

	scoped.HandleFunc("/event/{eventId:[0-9]+}/comment", h.ListComments).Methods("GET")
	scoped.Handle("/event/{eventId:[0-9]+}/comment", middleware.RequireAuthFunc(h.CreateComment)).Methods("POST")
	scoped.Handle("/event/{eventId:[0-9]+}/comment/{id:[0-9]+}", middleware.RequireAuthFunc(h.UpdateComment)).Methods("PUT")
	scoped.Handle("/event/{eventId:[0-9]+}/comment/{id:[0-9]+}", middleware.RequireAuthFunc(h.DeleteComment)).Methods("DELETE")
}

// ListEvents lists the events of a university the caller may see.
// Optional filters: rso_id, category, from, to (RFC 3339).
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}

	filter := events.ListFilter{
		OrganizationID: orgID,
		Category:       httputil.ParseQueryString(r, "category", ""),
	}
	var err error
	if filter.GroupID, err = httputil.ParseQueryInt64(r, "rso_id"); err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("rso_id"))
		return
	}
	if filter.From, err = httputil.ParseQueryTime(r, "from"); err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("from"))
		return
	}
	if filter.To, err = httputil.ParseQueryTime(r, "to"); err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("to"))
		return
	}

	list, err := h.events.List(r.Context(), permissions.FromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, "")
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// CreateEvent schedules an event for one of the university's RSOs
func (h *EventHandlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
	if !ok {
		return
	}
	var req events.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.OrganizationID = orgID

	perms := permissions.FromContext(r.Context())
	event, err := h.events.Create(r.Context(), perms, req)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, "")
		return
	}

	mutation(r, audit.EventTypeEventCreate, perms.UserID(), orgID, audit.ResourceTypeEvent, strconv.FormatInt(event.ID, 10),
		map[string]interface{}{"rso_id": event.GroupID, "privacy": event.Privacy.String()})
	_ = httputil.WriteCreated(w, event)
}

// GetEvent returns one event if the caller may see it
func (h *EventHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.events.Show(r.Context(), permissions.FromContext(r.Context()), orgID, id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, strconv.FormatInt(id, 10))
		return
	}
	_ = httputil.WriteSuccess(w, event)
}

// DeleteEvent deactivates an event
func (h *EventHandlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}

	perms := permissions.FromContext(r.Context())
	if err := h.events.Destroy(r.Context(), perms, orgID, id); err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeEventDestroy, perms.UserID(), orgID, audit.ResourceTypeEvent, strconv.FormatInt(id, 10), nil)
	httputil.WriteNoContent(w)
}

// UploadImage stores a multipart "image" and sets it as the event image
func (h *EventHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseScopedID(w, r, "id")
	if !ok {
		return
	}
	resourceID := strconv.FormatInt(id, 10)

	ctx := r.Context()
	perms := permissions.FromContext(ctx)
	event, err := h.events.Show(ctx, perms, orgID, id)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, resourceID)
		return
	}
	if !perms.Allowed(roles.ActionEventsCreate, permissions.ScopeGroup, event.GroupID) {
		h.fail(w, r, apierrors.ErrInvalidPermissionForAction, audit.ResourceTypeEvent, resourceID)
		return
	}

	url, err := h.images.upload(r, fmt.Sprintf("events/%d", id))
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, resourceID)
		return
	}

	event, err = h.events.SetImage(ctx, perms, orgID, id, url)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, resourceID)
		return
	}
	_ = httputil.WriteSuccess(w, event)
}

// ListComments lists the comments of a visible event
func (h *EventHandlers) ListComments(w http.ResponseWriter, r *http.Request) {
	orgID, eventID, ok := parseScopedID(w, r, "eventId")
	if !ok {
		return
	}

	list, err := h.events.ListComments(r.Context(), permissions.FromContext(r.Context()), orgID, eventID)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeEvent, strconv.FormatInt(eventID, 10))
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// CreateComment posts a comment on a visible event
func (h *EventHandlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	orgID, eventID, ok := parseScopedID(w, r, "eventId")
	if !ok {
		return
	}
	var req CommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	comment, err := h.events.CreateComment(r.Context(), permissions.FromContext(r.Context()), orgID, eventID, req.Message)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeComment, "")
		return
	}
	_ = httputil.WriteCreated(w, comment)
}

// UpdateComment edits the caller's own comment
func (h *EventHandlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	orgID, eventID, ok := parseScopedID(w, r, "eventId")
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	comment, err := h.events.UpdateComment(r.Context(), permissions.FromContext(r.Context()), orgID, eventID, id, req.Message)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeComment, strconv.FormatInt(id, 10))
		return
	}
	_ = httputil.WriteSuccess(w, comment)
}

// DeleteComment removes the caller's own comment
func (h *EventHandlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	orgID, eventID, ok := parseScopedID(w, r, "eventId")
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.events.DestroyComment(r.Context(), permissions.FromContext(r.Context()), orgID, eventID, id); err != nil {
		h.fail(w, r, err, audit.ResourceTypeComment, strconv.FormatInt(id, 10))
		return
	}
	httputil.WriteNoContent(w)
}
