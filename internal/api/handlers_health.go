// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	files   StagedFiles
	stats   *Stats
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, files StagedFiles, stats *Stats) HealthHandler {
	if stats == nil {
		stats = NewStats()
	}
	return &HealthHandlerImpl{
		version: version,
		files:   files,
		stats:   stats,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"staged":  h.stagedCount(),
	})
}

// HandleStats returns request counters as JSON, or msgpack when asked for
func (h *HealthHandlerImpl) HandleStats(c echo.Context) error {
	snap := h.stats.Snapshot(h.stagedCount())

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeMsgpack) {
		data, err := msgpack.Marshal(snap)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, mimeMsgpack, data)
	}

	return c.JSON(http.StatusOK, snap)
}

func (h *HealthHandlerImpl) stagedCount() int {
	if h.files == nil {
		return 0
	}
	return h.files.Count()
}
