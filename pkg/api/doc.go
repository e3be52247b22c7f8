// Package api is the HTTP surface of campus.
//
// Routes live under /api and are served by gorilla/mux. Every request runs
// through recovery, request id, logging, CORS, tracing and audit middleware
// before routing; matched /api routes then get metrics, authentication,
// rate limiting and a per-request permissions.Resolver. Routes under
// /api/university/{universityId} additionally require the university to
// exist.
//
// Handlers never decide authorization themselves except before side effects
// that cannot be undone (image uploads). Everything else is enforced by the
// services, whose apierrors are written back with httputil.WriteAPIError:
//
//	{"message": "601 | Event privacy restriction", "errorCode": 601, "raw": null}
package api
