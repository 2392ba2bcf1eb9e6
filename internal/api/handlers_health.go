// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	backendOK          = "ok"
	backendUnreachable = "unreachable"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	probe    BackendProbe
	registry SessionRegistry
}

// NewHealthHandler creates a new health handler. probe and registry may be nil.
func NewHealthHandler(version string, probe BackendProbe, registry SessionRegistry) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		probe:    probe,
		registry: registry,
	}
}

// HandleHealth returns server health status. The service stays healthy
// when the analysis backend is down; the backend state is reported apart.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}

	if h.probe != nil {
		state := backendOK
		if err := h.probe.Ping(c.Request().Context()); err != nil {
			state = backendUnreachable
		}
		body["analysis_backend"] = state
	}

	if h.registry != nil {
		body["sessions"] = h.registry.Count()
		body["busy"] = h.registry.Busy()
	}

	return c.JSON(http.StatusOK, body)
}
