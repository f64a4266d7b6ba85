// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/history"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/upload"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles the analysis workflow of a session
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleStartAnalysis(c echo.Context) error
	HandleBack(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleResults(c echo.Context) error
	HandleResultsMsgpack(c echo.Context) error
	HandleExport(c echo.Context) error
}

// UploadHandler handles image upload operations
type UploadHandler interface {
	HandleSessionFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
}

// FileHandler serves held images
type FileHandler interface {
	HandleFileContent(c echo.Context) error
	HandleFilePreview(c echo.Context) error
}

// HistoryHandler exposes completed analyses
type HistoryHandler interface {
	HandleRecentRuns(c echo.Context) error
	HandleSubstanceStats(c echo.Context) error
}

// PagesHandler serves navigation and page content
type PagesHandler interface {
	HandleNavigation(c echo.Context) error
	HandleGetPage(c echo.Context) error
}

// SessionEventsHandler pushes session snapshots over WebSocket
type SessionEventsHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create() (*models.AnalysisSession, error)
	Get(id string) (*models.AnalysisSession, error)
	TouchSession(id string) bool
	AttachFile(id string, file *models.UploadedFile) (*models.AnalysisSession, error)
	Start(id string) (*models.AnalysisSession, error)
	Back(id string) (*models.AnalysisSession, error)
	Delete(id string) error
	Subscribe(id string) (<-chan *models.AnalysisSession, func(), error)
	Count() int
}

// UploadJobManager runs chunked upload jobs
type UploadJobManager interface {
	StartJob(req upload.JobRequest) (*upload.Job, error)
	GetJob(id string) (*upload.Job, bool)
}

// HistoryStore answers history queries
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
	SubstanceStats(ctx context.Context) ([]history.SubstanceStat, error)
}
