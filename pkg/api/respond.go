package api

import (
	"net/http"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/observability"
)

// responder writes error responses and records authorization denials
type responder struct {
	metrics *observability.Metrics
}

// fail answers with err. Authorization failures are counted and audited
// against the named resource; server errors are logged.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error, resource audit.ResourceType, resourceID string) {
	apiErr := apierrors.From(err)
	ctx := r.Context()

	switch {
	case apiErr.Kind == apierrors.KindAuthorization:
		rs.metrics.ObserveDenial(apiErr.Code)
		if auditErr := audit.LogDenied(ctx, resource, resourceID, apiErr.Message); auditErr != nil {
			observability.FromContext(ctx).WithError(auditErr).Warn("failed to audit denial")
		}
	case apiErr.Status >= http.StatusInternalServerError:
		observability.FromContext(ctx).WithError(err).
			WithField("error_code", apiErr.Code).
			Error("request failed")
	}

	httputil.WriteAPIError(w, apiErr)
}

// mutation records a successful write in the audit log. Audit failures are
// logged and never fail the request.
func mutation(r *http.Request, eventType audit.EventType, userID, organizationID int64, resource audit.ResourceType, resourceID string, metadata map[string]interface{}) {
	var orgID *int64
	if organizationID > 0 {
		orgID = &organizationID
	}
	ctx := r.Context()
	if err := audit.FromContext(ctx).LogMutation(ctx, eventType, &userID, orgID, resource, resourceID, metadata); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to audit mutation")
	}
}
