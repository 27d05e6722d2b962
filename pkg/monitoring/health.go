package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// checkTimeout bounds every probe so a hung dependency cannot stall the
// health endpoint past a load balancer's own timeout.
const checkTimeout = 5 * time.Second

// CheckResult is the outcome of a single probe.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthStatus is the health endpoint payload: per-check results plus the
// worst status rolled up.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// HealthCheck probes one dependency.
type HealthCheck func() CheckResult

// HealthChecker runs registered probes and reports the worst result.
// Register hard dependencies to return unhealthy and soft ones degraded;
// the rollup takes the maximum severity across checks.
type HealthChecker struct {
	service string
	version string
	names   []string
	checks  map[string]HealthCheck
}

func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a probe under a stable name. Re-registering a name
// replaces the previous probe.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	if _, exists := hc.checks[name]; !exists {
		hc.names = append(hc.names, name)
		sort.Strings(hc.names)
	}
	hc.checks[name] = check
}

func severity(status string) int {
	switch status {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		// Unknown statuses count as unhealthy rather than silently passing.
		return 2
	}
}

// CheckHealth runs every probe and rolls the worst status up.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	out := HealthStatus{
		Status:    StatusHealthy,
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(hc.checks)),
	}

	worst := 0
	for _, name := range hc.names {
		result := hc.checks[name]()
		out.Checks[name] = result
		if s := severity(result.Status); s > worst {
			worst = s
		}
	}
	switch worst {
	case 1:
		out.Status = StatusDegraded
	case 2:
		out.Status = StatusUnhealthy
	}
	return out
}

// Handler serves the health payload. Degraded still answers 200 so
// orchestrators keep routing while operators see the warning; only
// unhealthy flips to 503.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, health)
	}
}

// DatabaseHealthCheck pings Postgres. The database is a hard dependency, so
// a failed ping reports unhealthy.
func DatabaseHealthCheck(db *sql.DB) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("database ping failed: %v", err),
				Latency: time.Since(start).String(),
			}
		}
		return CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
	}
}

// RedisHealthCheck pings the listing cache. The cache is a soft dependency
// (reads fall through to Postgres), so failures report degraded.
func RedisHealthCheck(client redis.UniversalClient) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		if client == nil {
			return CheckResult{Status: StatusDegraded, Message: "redis not configured"}
		}

		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Latency: time.Since(start).String(),
			}
		}
		return CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
	}
}

// ProviderHealthCheck reports whether an optional external provider
// (payments, object storage, e-sign) has credentials configured. Missing
// configuration is degraded: the owning endpoints answer 503 while the
// rest of the platform keeps working.
func ProviderHealthCheck(provider string, configured bool) HealthCheck {
	return func() CheckResult {
		if !configured {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%s not configured", provider),
			}
		}
		return CheckResult{Status: StatusHealthy}
	}
}

// ConfigurationHealthCheck fails when any of the given required settings is
// empty. Keys arrive with their current values so the probe stays in sync
// with what the process actually loaded.
func ConfigurationHealthCheck(required map[string]string) HealthCheck {
	return func() CheckResult {
		var missing []string
		for key, value := range required {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("missing required configuration: %v", missing),
			}
		}
		return CheckResult{Status: StatusHealthy}
	}
}
