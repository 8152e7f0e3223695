package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"apiproxy-go/internal/client"
	"apiproxy-go/internal/model"
	"apiproxy-go/internal/representation"
	"apiproxy-go/internal/service"
	"apiproxy-go/internal/target"
)

// queryPattern matches query strings of URLs embedded in error messages.
// Callers may put credentials in parameters, so they are never logged.
var queryPattern = regexp.MustCompile(`\?[^\s"]+`)

// ProxyHandler accepts proxy requests and writes the rendered upstream response.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle decodes a ProxyRequest from the JSON body, runs it and writes the
// result with the upstream status code.
func (h *ProxyHandler) Handle(c echo.Context) error {
	var pr model.ProxyRequest
	if err := c.Bind(&pr); err != nil {
		h.logger.Warn("invalid proxy request", "err", err)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(&pr); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	resp, err := h.service.Proxy(c.Request().Context(), &pr)
	if err != nil {
		return h.mapError(c, &pr, err)
	}

	h.logger.Debug("proxied",
		"server", pr.Server,
		"method", pr.Method,
		"representation", pr.Representation,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
	)

	if resp.Filename != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", resp.Filename))
	}
	return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
}

func (h *ProxyHandler) mapError(c echo.Context, pr *model.ProxyRequest, err error) error {
	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"server", pr.Server,
		"method", pr.Method,
		"representation", pr.Representation,
	)

	status, msg := classify(err)
	return c.JSON(status, map[string]string{"error": msg})
}

// classify maps a pipeline error to a status code and client-facing message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, target.ErrUnknownServer):
		return http.StatusBadRequest, "invalid server"
	case errors.Is(err, representation.ErrInvalidRepresentation):
		return http.StatusBadRequest, representation.ErrInvalidRepresentation.Error()
	case errors.Is(err, service.ErrInvalidMethod):
		return http.StatusBadRequest, "invalid HTTP method"
	case errors.Is(err, service.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid query parameter"
	case errors.Is(err, representation.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream returned malformed XML"
	case errors.Is(err, client.ErrResponseTooLarge):
		return http.StatusBadGateway, "upstream response too large"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream request timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusBadGateway, "client disconnected"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "upstream request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return http.StatusBadGateway, "upstream host unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "upstream connection failed"
	}

	return http.StatusBadGateway, "upstream request failed"
}

// sanitizeError redacts query strings from error messages that may contain upstream URLs.
func sanitizeError(err error) string {
	return queryPattern.ReplaceAllString(err.Error(), "?[REDACTED]")
}
