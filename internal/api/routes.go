// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	UploadMgr  UploadJobManager
	History    HistoryStore // nil when history is disabled
	Logger     *zap.Logger
	Version    string

	MaxPreviewBytes    int64 // 0 disables the preview size cap
	WSMaxMessageSizeKB int
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Session SessionHandler
	Upload  UploadHandler
	Files   FileHandler
	History HistoryHandler
	Pages   PagesHandler
	Events  SessionEventsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SessionMgr),
		Session: NewSessionHandler(deps.SessionMgr, logger),
		Upload:  NewUploadHandler(deps.Store, deps.SessionMgr, deps.UploadMgr, logger),
		Files:   NewFileHandler(deps.Store, deps.MaxPreviewBytes),
		History: NewHistoryHandler(deps.History),
		Pages:   NewPagesHandler(),
		Events:  NewWebSocketHandler(deps.SessionMgr, deps.WSMaxMessageSizeKB, logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Analysis sessions
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/file", handlers.Upload.HandleSessionFile)
	sessionGroup.POST("/:id/start", handlers.Session.HandleStartAnalysis)
	sessionGroup.POST("/:id/back", handlers.Session.HandleBack)
	sessionGroup.GET("/:id/progress", handlers.Session.HandleProgressStream)
	sessionGroup.GET("/:id/ws", handlers.Events.HandleWebSocket)
	sessionGroup.GET("/:id/results", handlers.Session.HandleResults)
	sessionGroup.GET("/:id/results/msgpack", handlers.Session.HandleResultsMsgpack)
	sessionGroup.GET("/:id/export", handlers.Session.HandleExport)

	// Chunked uploads
	uploadGroup := apiGroup.Group("/uploads")
	uploadGroup.POST("/chunk", handlers.Upload.HandleUploadChunk)
	uploadGroup.POST("/complete", handlers.Upload.HandleCompleteUpload)
	uploadGroup.GET("/:jobId", handlers.Upload.HandleUploadJobStatus)

	// Held images
	fileGroup := apiGroup.Group("/files")
	fileGroup.GET("/:id/content", handlers.Files.HandleFileContent)
	fileGroup.GET("/:id/preview", handlers.Files.HandleFilePreview)

	// History
	apiGroup.GET("/history", handlers.History.HandleRecentRuns)
	apiGroup.GET("/history/stats", handlers.History.HandleSubstanceStats)

	// Navigation and pages
	apiGroup.GET("/navigation", handlers.Pages.HandleNavigation)
	apiGroup.GET("/pages", handlers.Pages.HandleGetPage)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
