// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, university)
//	httputil.WriteCreated(w, rso)
//	httputil.WriteAPIError(w, err)
//
// WriteAPIError renders every failure in one shape:
//
//	{"message": "601 | Event privacy restriction", "errorCode": 601, "raw": null}
//
// Errors that are not *apierrors.Error become 1 | Unknown error with status
// 500; their text is never sent to the client.
//
// # Request Parsing
//
//	var req groups.CreateRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	orgID, ok := httputil.ParsePathInt64OrError(w, r, "universityId")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
