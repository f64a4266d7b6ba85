// handlers_history.go - Analysis history handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryStore
}

// NewHistoryHandler creates a new history handler. A nil store disables it.
func NewHistoryHandler(history HistoryStore) HistoryHandler {
	return &HistoryHandlerImpl{history: history}
}

// HandleRecentRuns returns the newest completed analyses
func (h *HistoryHandlerImpl) HandleRecentRuns(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("analysis history is disabled")
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return NewValidationError("limit")
		}
		limit = n
	}

	runs, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	return c.JSON(http.StatusOK, runs)
}

// HandleSubstanceStats returns per-substance aggregates
func (h *HistoryHandlerImpl) HandleSubstanceStats(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("analysis history is disabled")
	}

	stats, err := h.history.SubstanceStats(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	return c.JSON(http.StatusOK, stats)
}
