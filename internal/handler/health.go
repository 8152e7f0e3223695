package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"apiproxy-go/internal/target"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	targets *target.Table
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(targets *target.Table, v Version) *HealthHandler {
	return &HealthHandler{targets: targets, version: v}
}

// Healthz returns a simple OK response for liveness checks.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusResponse is the body of the status endpoint. Base URLs are omitted.
type statusResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Servers []string `json:"servers"`
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:  "ok",
		Version: string(h.version),
		Servers: h.targets.Names(),
	})
}
