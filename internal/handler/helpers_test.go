package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"apiproxy-go/internal/client"
	"apiproxy-go/internal/config"
	"apiproxy-go/internal/representation"
	"apiproxy-go/internal/service"
	"apiproxy-go/internal/target"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2024, time.December, 31, 23, 59, 58, 0, time.Local)
}

// newTestConfig returns a config whose server "A" points at baseURL.
func newTestConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:   10,
			IdleConnections:  10,
			MaxResponseBytes: 1 << 20,
		},
		Servers: map[string]string{"A": baseURL},
	}
}

// newTestHandler builds the full handler stack against cfg.
func newTestHandler(t *testing.T, cfg *config.Config) (*ProxyHandler, *target.Table) {
	t.Helper()
	logger := discardLogger()
	table := target.NewTable(cfg.Servers)
	uc := client.NewUpstreamClient(cfg, logger, nil)
	svc := service.NewProxyService(table, uc, representation.NewRenderer(fixedNow), cfg, nil)
	return NewProxyHandler(svc, logger), table
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

// serve runs a proxy request body through h and returns the recorder.
func serve(t *testing.T, h *ProxyHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodPost, "/ApiProxy", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	return rec
}
