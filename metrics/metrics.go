// Package metrics registers the prometheus collectors backing the
// monitoring endpoint (§4.9): request counts/latency, cache hit/miss,
// rate-limit rejections, auth failures, and circuit breaker state.
// Grounded on the teacher's metrics/metrics.go Init shape (namespaced
// Gauge/CounterVec/HistogramVec registration), trimmed of the CPU/
// memory/queue gauges that have no SPEC_FULL.md component to feed
// them and renamed to crudgate's namespace.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const (
	Namespace = "crudgate"
	Subsystem = "backend"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	CacheHit            *prometheus.CounterVec
	CacheMiss           *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	AuthFailuresTotal   *prometheus.CounterVec
	DBConnectionsOpen   prometheus.Gauge
	CircuitBreakerOpen  prometheus.Gauge
	HealthScore         prometheus.Gauge
)

func Init() error {
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "http_requests_total", Help: "Total number of HTTP requests",
	}, []string{"method", "action", "table", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "http_request_duration_seconds", Help: "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "table"})

	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "errors_total", Help: "Total number of error responses by kind",
	}, []string{"kind"})

	CacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "cache_hits_total", Help: "Total number of cache hits",
	}, []string{"table"})

	CacheMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "cache_misses_total", Help: "Total number of cache misses",
	}, []string{"table"})

	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "rate_limit_rejections_total", Help: "Total number of rate-limited requests",
	}, []string{"identifier_kind"})

	AuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "auth_failures_total", Help: "Total number of authentication failures",
	}, []string{"method"})

	DBConnectionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "db_connections_open", Help: "Number of open database connections",
	})

	CircuitBreakerOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "circuit_breaker_open", Help: "1 if the database circuit breaker is open, else 0",
	})

	HealthScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: Subsystem,
		Name: "health_score", Help: "Composite health score in [0,100], see monitor.go",
	})

	errs := []error{
		prometheus.Register(HTTPRequestsTotal),
		prometheus.Register(HTTPRequestDuration),
		prometheus.Register(ErrorsTotal),
		prometheus.Register(CacheHit),
		prometheus.Register(CacheMiss),
		prometheus.Register(RateLimitRejections),
		prometheus.Register(AuthFailuresTotal),
		prometheus.Register(DBConnectionsOpen),
		prometheus.Register(CircuitBreakerOpen),
		prometheus.Register(HealthScore),
		prometheus.Register(collectors.NewBuildInfoCollector()),
		prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace})),
	}
	return errors.WithStack(multierr.Combine(errs...))
}
