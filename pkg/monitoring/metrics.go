package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the Prometheus registry for the process and the
// request-level HTTP metrics. Domain metrics register through NewCounter,
// NewGauge and NewHistogram so everything shares one name prefix and one
// registry; a private registry keeps repeated construction in tests from
// colliding the way the default global registry would.
type MetricsCollector struct {
	prefix   string
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	buildInfo       *prometheus.GaugeVec
}

// NewMetricsCollector builds a collector whose metric names are prefixed
// with the service name (hyphens become underscores per Prometheus naming
// rules). Version and commit are exposed as labels on <prefix>_build_info.
func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	mc := &MetricsCollector{
		prefix:   strings.ReplaceAll(serviceName, "-", "_"),
		registry: prometheus.NewRegistry(),
	}

	mc.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.prefix + "_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status"},
	)
	mc.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    mc.prefix + "_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	mc.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: mc.prefix + "_http_in_flight_requests",
			Help: "Requests currently being served",
		},
	)
	mc.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: mc.prefix + "_build_info",
			Help: "Build metadata, value is always 1",
		},
		[]string{"version", "commit"},
	)

	mc.registry.MustRegister(
		mc.requestsTotal,
		mc.requestDuration,
		mc.inFlight,
		mc.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc.buildInfo.WithLabelValues(version, commit).Set(1)

	return mc
}

// NewCounter registers a prefixed counter vector.
func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: mc.prefix + "_" + name,
		Help: help,
	}, labels)
	mc.registry.MustRegister(c)
	return c
}

// NewGauge registers a prefixed gauge vector.
func (mc *MetricsCollector) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: mc.prefix + "_" + name,
		Help: help,
	}, labels)
	mc.registry.MustRegister(g)
	return g
}

// NewHistogram registers a prefixed histogram vector. Nil buckets fall back
// to prometheus.DefBuckets.
func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    mc.prefix + "_" + name,
		Help:    help,
		Buckets: buckets,
	}, labels)
	mc.registry.MustRegister(h)
	return h
}

// CreateDatabaseMetrics registers the query counter, query latency histogram
// and connection gauge every service exposes for its Postgres pool.
func (mc *MetricsCollector) CreateDatabaseMetrics() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec) {
	queries := mc.NewCounter("db_queries_total", "Database queries by type and status", []string{"query_type", "status"})
	duration := mc.NewHistogram("db_query_duration_seconds", "Database query latency by type", []string{"query_type"}, nil)
	connections := mc.NewGauge("db_connections_active", "Open connections per database", []string{"database"})
	return queries, duration, connections
}

// MetricsMiddleware records request count, latency and in-flight gauge for
// every routed request. Unrouted paths collapse into one "unmatched" label
// so scans cannot explode the endpoint cardinality.
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.inFlight.Inc()

		c.Next()

		mc.inFlight.Dec()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		mc.requestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		mc.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
