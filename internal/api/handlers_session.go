// handlers_session.go - Analysis workflow handlers
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/report"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	progressStreamTimeout = 5 * time.Minute
	progressKeepAlive     = 15 * time.Second
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager, logger *zap.Logger) SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandlerImpl{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleCreateSession starts a new session in the upload state
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	sess, err := h.sessions.Create()
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// HandleGetSession returns the current snapshot and keeps the session alive
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	h.sessions.TouchSession(id)
	sess, err := h.sessions.Get(id)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession tears a session down
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.sessions.Delete(id); err != nil {
		return FromDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleStartAnalysis starts the analysis of the selected image
func (h *SessionHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	sess, err := h.sessions.Start(id)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleBack returns the session to the upload state
func (h *SessionHandlerImpl) HandleBack(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	sess, err := h.sessions.Back(id)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleProgressStream streams session snapshots via SSE. The stream ends
// once results are in, or when a started analysis returns to upload.
func (h *SessionHandlerImpl) HandleProgressStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	updates, cancel, err := h.sessions.Subscribe(id)
	if err != nil {
		return FromDomainError(err)
	}
	defer cancel()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(progressKeepAlive)
	defer keepAlive.Stop()

	timeout := time.NewTimer(progressStreamTimeout)
	defer timeout.Stop()

	ctx := c.Request().Context()
	seenProcessing := false

	for {
		select {
		case sess, ok := <-updates:
			if !ok {
				h.sendSSEError(c, "session closed")
				return nil
			}
			h.sendSSEData(c, sess)

			switch sess.State {
			case models.StateProcessing:
				seenProcessing = true
			case models.StateResults:
				return nil
			case models.StateUpload:
				if seenProcessing {
					return nil
				}
			}

		case <-keepAlive.C:
			fmt.Fprint(c.Response(), ": keepalive\n\n")
			c.Response().Flush()

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// completedSession returns the session if its results are available
func (h *SessionHandlerImpl) completedSession(c echo.Context) (*models.AnalysisSession, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, FromDomainError(err)
	}
	if sess.State != models.StateResults {
		return nil, NewConflictError(fmt.Sprintf("results not available while session is %s", sess.State))
	}
	return sess, nil
}

// HandleResults returns the results view
func (h *SessionHandlerImpl) HandleResults(c echo.Context) error {
	sess, err := h.completedSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.BuildView(sess))
}

// HandleResultsMsgpack returns the results view in MessagePack format
func (h *SessionHandlerImpl) HandleResultsMsgpack(c echo.Context) error {
	sess, err := h.completedSession(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(report.BuildView(sess))
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleExport downloads the report as JSON, or as CSV with ?format=csv
func (h *SessionHandlerImpl) HandleExport(c echo.Context) error {
	sess, err := h.completedSession(c)
	if err != nil {
		return err
	}

	now := h.now()
	switch c.QueryParam("format") {
	case "", "json":
		data, err := report.NewReport(sess.ImageURL, sess.Results, now).MarshalIndent()
		if err != nil {
			return NewInternalError("failed to encode report", err)
		}
		setAttachment(c, report.FileName(now))
		h.logger.Info("report exported", zap.String("session", sess.ID), zap.String("format", "json"))
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)

	case "csv":
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, sess.Results); err != nil {
			return NewInternalError("failed to encode report", err)
		}
		setAttachment(c, report.CSVFileName(now))
		h.logger.Info("report exported", zap.String("session", sess.ID), zap.String("format", "csv"))
		return c.Blob(http.StatusOK, "text/csv", buf.Bytes())

	default:
		return NewBadRequestError("unsupported export format: "+c.QueryParam("format"), nil)
	}
}

func setAttachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
}

// Helper functions

func (h *SessionHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("failed to encode SSE payload", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *SessionHandlerImpl) sendSSEError(c echo.Context, message string) {
	fmt.Fprintf(c.Response(), "event: error\ndata: {\"error\": %q}\n\n", message)
	c.Response().Flush()
}
