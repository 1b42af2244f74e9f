package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-cache-proxy/internal/apierror"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/ratelimit"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"propagated", "req-1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			var seen string
			h := CorrelationIDMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = observability.CorrelationID(r.Context())
				observability.LoggerFromContext(r.Context(), nil).Info("inside")
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(CorrelationIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			got := w.Header().Get(CorrelationIDHeader)
			if got == "" {
				t.Fatal("X-Correlation-ID header missing")
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("header = %q, want %q", got, tt.incoming)
			}
			if seen != got {
				t.Errorf("context ID = %q, header = %q", seen, got)
			}
			entries := logs.FilterMessage("inside").All()
			if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != got {
				t.Errorf("request logger missing correlation_id: %+v", entries)
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	h := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "SAMEORIGIN",
		"Referrer-Policy":             "no-referrer",
		"Access-Control-Allow-Origin": "*",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/weather/current", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/weather/current", "418")
	before := testutil.ToFloat64(counter)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/weather/current?city=London", nil))
	if d := testutil.ToFloat64(counter) - before; d != 1 {
		t.Errorf("httpRequestsTotal delta = %v, want 1", d)
	}
}

type errBackend struct{}

func (errBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func newLimitedHandler(backend ratelimit.Backend, limit int, trustProxy bool) http.Handler {
	errs := NewErrorBoundary(observability.EnvProduction, nil)
	return RateLimitMiddleware(backend, limit, time.Minute, trustProxy, errs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

// TestRateLimitMiddleware_Headers verifies standard headers on allowed and denied
// requests and the uniform 429 body.
func TestRateLimitMiddleware_Headers(t *testing.T) {
	h := newLimitedHandler(ratelimit.NewLocalBackend(), 1, false)
	denied := testutil.ToFloat64(observability.RateLimitDeniedTotal)

	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/weather/current?city=London", nil)
		r.RemoteAddr = "192.0.2.1:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	first := req()
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get("RateLimit-Limit") != "1" || first.Header().Get("RateLimit-Remaining") != "0" {
		t.Errorf("headers = %v", first.Header())
	}
	if reset, err := strconv.Atoi(first.Header().Get("RateLimit-Reset")); err != nil || reset < 59 || reset > 60 {
		t.Errorf("RateLimit-Reset = %q", first.Header().Get("RateLimit-Reset"))
	}
	if first.Header().Get("Retry-After") != "" {
		t.Error("Retry-After set on allowed request")
	}

	second := req()
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing on 429")
	}
	env := decodeEnvelope(t, second)
	if env.Status != "error" || env.ErrorCode != apierror.CodeRateLimited ||
		env.Message != "Too many requests - please try again later." {
		t.Errorf("envelope = %+v", env)
	}
	if d := testutil.ToFloat64(observability.RateLimitDeniedTotal) - denied; d != 1 {
		t.Errorf("rateLimitDeniedTotal delta = %v, want 1", d)
	}
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	h := newLimitedHandler(ratelimit.NewLocalBackend(), 1, false)

	for _, addr := range []string{"198.51.100.1:5000", "198.51.100.2:5000"} {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("client %s status = %d, want 200", addr, w.Code)
		}
	}
}

// TestRateLimitMiddleware_IgnoresForwardedForByDefault sends a new X-Forwarded-For
// on every request from one socket; the socket is still limited.
func TestRateLimitMiddleware_IgnoresForwardedForByDefault(t *testing.T) {
	h := newLimitedHandler(ratelimit.NewLocalBackend(), 2, false)

	var codes []int
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/weather/current?city=London", nil)
		r.RemoteAddr = "192.0.2.10:5000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	want := []int{200, 200, 429, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", codes, want)
		}
	}
}

func TestRateLimitMiddleware_TrustProxyKeysByForwardedFor(t *testing.T) {
	h := newLimitedHandler(ratelimit.NewLocalBackend(), 1, true)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("client %s status = %d, want 200", ip, w.Code)
		}
	}
}

func TestRateLimitMiddleware_BackendErrorAllows(t *testing.T) {
	h := newLimitedHandler(errBackend{}, 1, false)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("request %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestSecondsUntil(t *testing.T) {
	if got := secondsUntil(time.Now().Add(-time.Second)); got != 0 {
		t.Errorf("past = %d, want 0", got)
	}
	if got := secondsUntil(time.Now().Add(1500 * time.Millisecond)); got != 2 {
		t.Errorf("1.5s = %d, want 2", got)
	}
}
