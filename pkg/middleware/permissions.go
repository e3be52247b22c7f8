package middleware

import (
	"net/http"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/auth"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/membership"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/permissions"
)

// PermissionsMiddleware builds one resolver per authenticated request and
// stores it for handlers. A failed membership load answers 503 rather than
// continuing with an empty or stale permission set. Anonymous requests carry
// no resolver, which permissions.FromContext treats as deny-all.
func PermissionsMiddleware(loader membership.Loader, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.FromContext(r.Context()).UserID()
			if userID <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			resolver, err := permissions.Build(ctx, loader, userID)
			if err != nil {
				observability.FromContext(ctx).WithError(err).Error("permission resolution failed")
				recordResolution(metrics, "error")
				httputil.WriteAPIError(w, apierrors.ErrServiceUnavailable.Wrap(err))
				return
			}
			recordResolution(metrics, "ok")

			next.ServeHTTP(w, r.WithContext(permissions.WithResolver(ctx, resolver)))
		})
	}
}

func recordResolution(metrics *observability.Metrics, outcome string) {
	if metrics != nil {
		metrics.PermissionResolutionsTotal.WithLabelValues(outcome).Inc()
	}
}
