package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"apiproxy-go/internal/metrics"
)

// serveWithMetrics runs one request through an Echo instance that has the
// metrics middleware installed and routes registered by setup.
func serveWithMetrics(t *testing.T, setup func(e *echo.Echo), method, path string) (*metrics.Metrics, int) {
	t.Helper()
	m := metrics.New()
	e := echo.New()
	e.Use(MetricsMiddleware(m, "/metrics"))
	if setup != nil {
		setup(e)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return m, rec.Code
}

func TestMetricsMiddleware_Requests(t *testing.T) {
	okProxy := func(e *echo.Echo) {
		e.POST("/ApiProxy", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	}

	tests := []struct {
		name       string
		setup      func(e *echo.Echo)
		method     string
		path       string
		wantLabels []string // method, status_code, path_prefix
	}{
		{
			name:       "success",
			setup:      okProxy,
			method:     http.MethodPost,
			path:       "/ApiProxy",
			wantLabels: []string{"POST", "200", "/ApiProxy"},
		},
		{
			name: "lowercase route",
			setup: func(e *echo.Echo) {
				e.POST("/apiproxy", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
			},
			method:     http.MethodPost,
			path:       "/apiproxy",
			wantLabels: []string{"POST", "200", "/apiproxy"},
		},
		{
			name: "http error status",
			setup: func(e *echo.Echo) {
				e.POST("/ApiProxy", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "not found") })
			},
			method:     http.MethodPost,
			path:       "/ApiProxy",
			wantLabels: []string{"POST", "404", "/ApiProxy"},
		},
		{
			name: "plain error counts as 500",
			setup: func(e *echo.Echo) {
				e.POST("/ApiProxy", func(c echo.Context) error { return errors.New("boom") })
			},
			method:     http.MethodPost,
			path:       "/ApiProxy",
			wantLabels: []string{"POST", "500", "/ApiProxy"},
		},
		{
			name: "unknown method normalized",
			setup: func(e *echo.Echo) {
				e.Any("/ApiProxy", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
			},
			method:     "XYZZY",
			path:       "/ApiProxy",
			wantLabels: []string{"other", "200", "/ApiProxy"},
		},
		{
			name:       "router not found",
			method:     http.MethodGet,
			path:       "/nonexistent",
			wantLabels: []string{"GET", "404", "other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := serveWithMetrics(t, tt.setup, tt.method, tt.path)

			if n := testutil.CollectAndCount(m.RequestsTotal); n != 1 {
				t.Fatalf("requests_total series = %d, want 1", n)
			}
			if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.wantLabels...)); got != 1 {
				t.Errorf("requests_total%v = %v, want 1", tt.wantLabels, got)
			}
		})
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m, code := serveWithMetrics(t, func(e *echo.Echo) {
		e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	}, http.MethodGet, "/healthz")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() != "apiproxy_http_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetHistogram().GetSampleCount() > 0 {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected apiproxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_InFlightReturnsToZero(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(MetricsMiddleware(m))

	var during float64
	e.POST("/ApiProxy", func(c echo.Context) error {
		during = testutil.ToFloat64(m.RequestsInFlight)
		return c.NoContent(http.StatusOK)
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ApiProxy", http.NoBody))

	if during != 1 {
		t.Errorf("in-flight during request = %v, want 1", during)
	}
	if got := testutil.ToFloat64(m.RequestsInFlight); got != 0 {
		t.Errorf("in-flight after request = %v, want 0", got)
	}
}

func TestMetricsMiddleware_SkipsScrapePath(t *testing.T) {
	m, _ := serveWithMetrics(t, func(e *echo.Echo) {
		e.GET("/metrics", func(c echo.Context) error { return c.String(http.StatusOK, "") })
	}, http.MethodGet, "/metrics")

	if n := testutil.CollectAndCount(m.RequestsTotal); n != 0 {
		t.Errorf("requests_total series = %d, want 0", n)
	}
}
