package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen      prometheus.Gauge
	DBConnectionsInUse     prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Domain metrics
	PermissionResolutionsTotal *prometheus.CounterVec
	AuthorizationDenialsTotal  *prometheus.CounterVec
	GroupCreationsTotal        *prometheus.CounterVec
	GroupCascadesTotal         prometheus.Counter
	MembershipsCascadedTotal   prometheus.Counter
	VisibilityTiersTotal       *prometheus.CounterVec
	LoginAttemptsTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache", "layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBConnectionsWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campus_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),

		PermissionResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_permission_resolutions_total",
				Help: "Per-request permission resolutions by outcome",
			},
			[]string{"outcome"},
		),
		AuthorizationDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_authorization_denials_total",
				Help: "Requests rejected for lack of permission, by error code",
			},
			[]string{"code"},
		),
		GroupCreationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_group_creations_total",
				Help: "Group creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		GroupCascadesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_group_cascades_total",
			Help: "Group deactivations that cascaded to memberships",
		}),
		MembershipsCascadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_memberships_cascaded_total",
			Help: "Membership rows deactivated by group cascades",
		}),
		VisibilityTiersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_visibility_tiers_total",
				Help: "Minimum event privacy tiers resolved for viewers",
			},
			[]string{"tier"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.PermissionResolutionsTotal,
		m.AuthorizationDenialsTotal,
		m.GroupCreationsTotal,
		m.GroupCascadesTotal,
		m.MembershipsCascadedTotal,
		m.VisibilityTiersTotal,
		m.LoginAttemptsTotal,
	)

	return m
}

// ObserveVisibilityTier counts a resolved minimum privacy tier
func (m *Metrics) ObserveVisibilityTier(tier string) {
	if m == nil {
		return
	}
	m.VisibilityTiersTotal.WithLabelValues(tier).Inc()
}

// ObserveCascade records one group deactivation and the memberships it touched
func (m *Metrics) ObserveCascade(memberships int64) {
	if m == nil {
		return
	}
	m.GroupCascadesTotal.Inc()
	m.MembershipsCascadedTotal.Add(float64(memberships))
}

// ObserveDenial counts a request rejected with the given authorization code
func (m *Metrics) ObserveDenial(code int) {
	if m == nil {
		return
	}
	m.AuthorizationDenialsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveGroupCreation counts a group creation attempt
func (m *Metrics) ObserveGroupCreation(outcome string) {
	if m == nil {
		return
	}
	m.GroupCreationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLogin counts a login attempt
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheHit counts a hit in the given cache layer
func (m *Metrics) ObserveCacheHit(cache, layer string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache, layer).Inc()
}

// ObserveCacheMiss counts a miss in every layer of the cache
func (m *Metrics) ObserveCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// CollectDBStats copies the pool statistics of db into the gauges
func (m *Metrics) CollectDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	stats := db.Stats()
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// statusRecorder wraps http.ResponseWriter to capture status code and size
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux path template so ids do not explode label
// cardinality. Unmatched requests share one label.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// It is meant to run as mux router middleware so the route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry prometheus.Gatherer) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
