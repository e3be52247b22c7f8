// Package middleware provides the campus request pipeline pieces that sit
// between transport and handlers: request ids, session authentication,
// per-request permission resolution, rate limiting and university scoping.
//
// # Order
//
// The router installs them in this order:
//
//	RequestID -> logging -> metrics -> otelhttp -> AuthMiddleware -> PermissionsMiddleware -> handlers
//
// AuthMiddleware lets anonymous requests through. Handlers that need a user
// are wrapped with RequireAuth, which answers 102 UserNotAuthenticated.
//
// # Rate limiting
//
// RateLimiter is an in-process token bucket. DistributedRateLimiter keeps a
// fixed window in Redis so the limit holds across instances. Both satisfy
// Limiter; the server picks the Redis one when Redis is configured.
//
//	login := middleware.NewDistributedRateLimiter(rdb, middleware.LoginRateLimitConfig(10, time.Minute), "campus:login")
//	router.Handle("/api/login", middleware.LoginRateLimit(login)(loginHandler))
//
// Limiter errors fail open.
package middleware
