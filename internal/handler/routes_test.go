package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"apiproxy-go/internal/config"
	"apiproxy-go/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	proxy, table := newTestHandler(t, newTestConfig(upstream.URL+"/"))
	health := NewHealthHandler(table, "test")

	e := newTestEcho()
	RegisterRoutes(e, proxy, health)

	body := `{"server":"A","method":"GET","option":"x","representation":"json"}`
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", "", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", "", http.StatusOK},
		{"POST /ApiProxy", http.MethodPost, "/ApiProxy", body, http.StatusOK},
		{"POST /apiproxy", http.MethodPost, "/apiproxy", body, http.StatusOK},
		{"GET /ApiProxy not allowed", http.MethodGet, "/ApiProxy", "", http.StatusMethodNotAllowed},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reader io.Reader = http.NoBody
			if tt.body != "" {
				reader = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, reader)
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterMetrics(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantStatus int
	}{
		{"enabled", true, http.StatusOK},
		{"disabled", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Metrics: config.MetricsConfig{Enabled: tt.enabled, Path: "/metrics"}}
			m := metrics.New()
			m.ProxyOutcomes.WithLabelValues("json", metrics.OutcomeOK).Inc()

			e := echo.New()
			RegisterMetrics(e, cfg, m)

			req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.enabled && !strings.Contains(rec.Body.String(), "apiproxy_proxy_outcomes_total") {
				t.Errorf("metrics output missing apiproxy_proxy_outcomes_total:\n%s", rec.Body.String())
			}
		})
	}
}
