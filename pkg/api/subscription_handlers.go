package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/permissions"
	"github.com/platinummonkey/campus/pkg/subscriptions"
)

// SubscriptionHandlers handles RSO subscriptions
type SubscriptionHandlers struct {
	responder
	subscriptions SubscriptionService
}

// NewSubscriptionHandlers creates subscription handlers
func NewSubscriptionHandlers(svc SubscriptionService, metrics *observability.Metrics) *SubscriptionHandlers {
	return &SubscriptionHandlers{responder: responder{metrics: metrics}, subscriptions: svc}
}

// SubscribeRequest names the RSO to follow
type SubscribeRequest struct {
	UniversityID int64 `json:"university_id"`
	RsoID        int64 `json:"rso_id"`
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/subscription", middleware.RequireAuthFunc(h.ListSubscriptions)).Methods("GET")
	router.Handle("/subscription", middleware.RequireAuthFunc(h.Subscribe)).Methods("POST")
	router.Handle("/subscription/{id:[0-9]+}", middleware.RequireAuthFunc(h.Unsubscribe)).Methods("DELETE")
}

// ListSubscriptions lists active subscriptions by user_id and/or rso_id.
// With neither the result is empty.
func (h *SubscriptionHandlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	var (
		filter subscriptions.Filter
		err    error
	)
	if filter.UserID, err = httputil.ParseQueryInt64(r, "user_id"); err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("user_id"))
		return
	}
	if filter.GroupID, err = httputil.ParseQueryInt64(r, "rso_id"); err != nil {
		httputil.WriteAPIError(w, apierrors.Missing("rso_id"))
		return
	}

	list, err := h.subscriptions.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeSubscription, "")
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// Subscribe subscribes the caller to an RSO
func (h *SubscriptionHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UniversityID <= 0 {
		httputil.WriteAPIError(w, apierrors.Missing("university_id"))
		return
	}

	perms := permissions.FromContext(r.Context())
	sub, err := h.subscriptions.Subscribe(r.Context(), perms, req.UniversityID, req.RsoID)
	if err != nil {
		h.fail(w, r, err, audit.ResourceTypeRso, strconv.FormatInt(req.RsoID, 10))
		return
	}

	mutation(r, audit.EventTypeSubscriptionCreate, perms.UserID(), req.UniversityID, audit.ResourceTypeSubscription,
		strconv.FormatInt(sub.ID, 10), map[string]interface{}{"rso_id": sub.GroupID})
	_ = httputil.WriteCreated(w, sub)
}

// Unsubscribe ends one of the caller's subscriptions
func (h *SubscriptionHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	actorID := auth.FromContext(r.Context()).UserID()
	if err := h.subscriptions.Unsubscribe(r.Context(), actorID, id); err != nil {
		h.fail(w, r, err, audit.ResourceTypeSubscription, strconv.FormatInt(id, 10))
		return
	}

	mutation(r, audit.EventTypeSubscriptionDestroy, actorID, 0, audit.ResourceTypeSubscription, strconv.FormatInt(id, 10), nil)
	httputil.WriteNoContent(w)
}
