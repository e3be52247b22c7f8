package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/campus/pkg/audit"
	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/media"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
)

// Options configures the request layer. Zero values disable the optional
// pieces: no audit trail, no rate limits, no image uploads.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Audit   audit.Logger

	AllowedOrigins []string
	MaxBodyBytes   int64
	SessionTTL     time.Duration

	UserLimiter      middleware.Limiter
	AnonymousLimiter middleware.Limiter
	LoginLimiter     middleware.Limiter

	Images         media.Store
	MaxUploadBytes int64

	// Tracing wraps the router with otelhttp
	Tracing bool
}

// Server represents our API server
type Server struct {
	services Services
	options  Options
	router   *mux.Router
	handler  http.Handler
}

// NewServer builds the router and middleware chain
func NewServer(services Services, options Options) *Server {
	if options.Logger == nil {
		options.Logger = observability.GetLogger(context.Background())
	}
	if options.SessionTTL <= 0 {
		options.SessionTTL = 7 * 24 * time.Hour
	}

	s := &Server{
		services: services,
		options:  options,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	s.handler = s.chain(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	svc, opts := s.services, s.options

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Message: "not found"})
	})

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	api.Use(middleware.NewAuthMiddleware(svc.Sessions, svc.Users).Handler)
	if opts.UserLimiter != nil && opts.AnonymousLimiter != nil {
		api.Use(middleware.NewRateLimitMiddleware(opts.UserLimiter, opts.AnonymousLimiter).Handler)
	}
	api.Use(middleware.PermissionsMiddleware(svc.Memberships, opts.Metrics))

	NewAuthHandlers(svc.Users, svc.Sessions, opts.SessionTTL, opts.LoginLimiter, opts.Metrics).RegisterRoutes(api)
	NewUserHandlers(svc.Users, opts.Metrics).RegisterRoutes(api)
	NewSubscriptionHandlers(svc.Subscriptions, opts.Metrics).RegisterRoutes(api)

	scoped := api.PathPrefix("/university/{universityId:[0-9]+}").Subrouter()
	scoped.Use(middleware.UniversityContextMiddleware(svc.Universities))

	NewUniversityHandlers(svc.Universities, opts.Images, opts.MaxUploadBytes, opts.Metrics).RegisterRoutes(api, scoped)
	NewRsoHandlers(svc.Rsos, opts.Metrics).RegisterRoutes(scoped)
	NewEventHandlers(svc.Events, opts.Images, opts.MaxUploadBytes, opts.Metrics).RegisterRoutes(scoped)
}

// chain wraps the router with the request-wide middleware, outermost first
func (s *Server) chain(next http.Handler) http.Handler {
	opts := s.options

	middlewares := []func(http.Handler) http.Handler{
		observability.RecoveryMiddleware(opts.Logger),
		middleware.RequestID,
		observability.LoggingMiddleware(opts.Logger),
		httputil.CORSMiddleware(opts.AllowedOrigins),
	}
	if opts.Tracing {
		middlewares = append(middlewares, func(h http.Handler) http.Handler {
			return otelhttp.NewHandler(h, "campus.api")
		})
	}
	if opts.MaxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	middlewares = append(middlewares, httputil.ContentTypeMiddleware)
	if opts.Audit != nil {
		middlewares = append(middlewares, audit.NewMiddleware(opts.Audit, false).Handler)
	}

	return httputil.Chain(middlewares...)(next)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}
