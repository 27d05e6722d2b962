package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCheckHealthRollsUpWorstStatus(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	if got := hc.CheckHealth().Status; got != StatusHealthy {
		t.Fatalf("expected healthy, got %q", got)
	}

	hc.AddCheck("slow", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %q", got)
	}

	hc.AddCheck("down", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %q", got)
	}
}

func TestCheckHealthTreatsUnknownStatusAsUnhealthy(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("weird", func() CheckResult { return CheckResult{Status: "banana"} })
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy for unknown status, got %q", got)
	}
}

func TestAddCheckReplacesByName(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("dep", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	hc.AddCheck("dep", func() CheckResult { return CheckResult{Status: StatusHealthy} })

	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected replacement check to win, got %q", status.Status)
	}
	if len(status.Checks) != 1 {
		t.Fatalf("expected one check, got %d", len(status.Checks))
	}
}

func TestHandlerAnswers503OnlyWhenUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("cache", func() CheckResult { return CheckResult{Status: StatusDegraded} })

	r := gin.New()
	r.GET("/health", hc.Handler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("degraded should still answer 200, got %d", w.Code)
	}

	hc.AddCheck("db", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy should answer 503, got %d", w.Code)
	}
}

func TestRedisHealthCheckNilClient(t *testing.T) {
	res := RedisHealthCheck(nil)()
	if res.Status != StatusDegraded {
		t.Fatalf("expected degraded for nil client, got %q", res.Status)
	}
}

func TestProviderHealthCheck(t *testing.T) {
	if res := ProviderHealthCheck("stripe", false)(); res.Status != StatusDegraded {
		t.Fatalf("unconfigured provider should be degraded, got %q", res.Status)
	}
	if res := ProviderHealthCheck("stripe", true)(); res.Status != StatusHealthy {
		t.Fatalf("configured provider should be healthy, got %q", res.Status)
	}
}

func TestConfigurationHealthCheckMissing(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "", "JWT_SECRET": "set"})()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy on missing config, got %q", res.Status)
	}
	res = ConfigurationHealthCheck(map[string]string{"JWT_SECRET": "set"})()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy when all present, got %q", res.Status)
	}
}
