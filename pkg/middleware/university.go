package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/campus/pkg/apierrors"
	"github.com/platinummonkey/campus/pkg/httputil"
)

// UniversityChecker reports whether an active university exists
type UniversityChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// UniversityContextMiddleware rejects requests whose {universityId} path
// variable is malformed or names no active university, so nested handlers
// can assume the university exists
func UniversityContextMiddleware(universities UniversityChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
			if !ok {
				return
			}

			exists, err := universities.Exists(r.Context(), id)
			if err != nil {
				httputil.WriteAPIError(w, err)
				return
			}
			if !exists {
				httputil.WriteAPIError(w, apierrors.ErrUniversityRecordNotFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
