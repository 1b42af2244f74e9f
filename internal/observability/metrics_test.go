package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/weather/current", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/weather/current").Observe(0.01)
	WeatherAPICallsTotal.WithLabelValues("success").Inc()
	WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
	WeatherAPIErrorsTotal.WithLabelValues("network").Inc()
	CacheHitsTotal.Inc()
	CacheMissesTotal.Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
	CacheConcurrentMissesTotal.Inc()
	RateLimitDeniedTotal.Inc()
	RateLimitFallbackActive.Set(0)
}

func TestSetHealthStatus(t *testing.T) {
	SetHealthStatus("redis", true)
	if got := testutil.ToFloat64(HealthCheckStatus.WithLabelValues("redis")); got != 1 {
		t.Errorf("healthCheckStatus{redis} = %v, want 1", got)
	}
	SetHealthStatus("redis", false)
	if got := testutil.ToFloat64(HealthCheckStatus.WithLabelValues("redis")); got != 0 {
		t.Errorf("healthCheckStatus{redis} = %v, want 0", got)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
