// handlers_upload.go - Image upload operation handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/storage"
	"github.com/thermal-analyzer/backend/internal/upload"
	"go.uber.org/zap"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store         storage.Store
	sessionMgr    SessionManager
	uploadManager UploadJobManager
	logger        *zap.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, sessionMgr SessionManager, uploadMgr UploadJobManager, logger *zap.Logger) UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandlerImpl{
		store:         store,
		sessionMgr:    sessionMgr,
		uploadManager: uploadMgr,
		logger:        logger,
	}
}

// Notice is the user-facing message attached to an upload outcome
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type sessionFileResponse struct {
	Session *models.AnalysisSession `json:"session"`
	Notice  Notice                  `json:"notice"`
}

// HandleSessionFile accepts one or more images (multipart field "file") and
// selects the first supported one for the session
func (h *UploadHandlerImpl) HandleSessionFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	// Unknown sessions fail before anything is stored
	if _, err := h.sessionMgr.Get(id); err != nil {
		return FromDomainError(err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form", err)
	}
	headers := form.File["file"]

	candidates := make([]upload.Candidate, len(headers))
	for i, fh := range headers {
		candidates[i] = upload.Candidate{
			Name: fh.Filename,
			Type: fh.Header.Get(echo.HeaderContentType),
			Size: fh.Size,
		}
	}

	idx, err := upload.SelectFirstSupported(candidates)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedFormat) {
			h.logger.Info("rejected upload", zap.String("session", id), zap.String("file", candidates[0].Name))
		}
		return FromDomainError(err)
	}
	chosen := headers[idx]

	src, err := chosen.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(chosen.Filename, candidates[idx].Type, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	h.inspect(info)

	sess, err := h.sessionMgr.AttachFile(id, info)
	if err != nil {
		h.store.Delete(info.ID)
		return FromDomainError(err)
	}

	return c.JSON(http.StatusCreated, sessionFileResponse{
		Session: sess,
		Notice: Notice{
			Title:       upload.NoticeUploadedTitle,
			Description: upload.NoticeUploadedDescription,
		},
	})
}

// inspect fills the sniffed type and dimensions when the file is on disk
func (h *UploadHandlerImpl) inspect(info *models.UploadedFile) {
	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return
	}
	insp, err := upload.InspectFile(path)
	if err != nil {
		h.logger.Debug("image inspection failed", zap.String("file", info.ID), zap.Error(err))
		return
	}
	info.DetectedType = insp.DetectedType
	info.Width = insp.Width
	info.Height = insp.Height
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	uploadID := c.FormValue("uploadId")
	if !storage.ValidUploadID(uploadID) {
		return NewValidationError("uploadId")
	}
	chunkIndex, err := strconv.Atoi(c.FormValue("chunkIndex"))
	if err != nil || chunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no chunk data provided", err)
	}
	src, err := fh.Open()
	if err != nil {
		return NewInternalError("failed to open chunk", err)
	}
	defer src.Close()

	if err := h.store.SaveChunk(uploadID, chunkIndex, src); err != nil {
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	if _, err := h.sessionMgr.Get(req.SessionID); err != nil {
		return FromDomainError(err)
	}

	job, err := h.uploadManager.StartJob(upload.JobRequest{
		UploadID:    req.UploadID,
		SessionID:   req.SessionID,
		FileName:    req.Name,
		MIMEType:    req.Type,
		TotalChunks: req.TotalChunks,
	})
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedFormat) || errors.Is(err, storage.ErrInvalidUploadID) {
			return FromDomainError(err)
		}
		return NewBadRequestError("failed to start upload job", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStatus returns the state of a chunked upload job
func (h *UploadHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	jobID := c.Param("jobId")
	if jobID == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.uploadManager.GetJob(jobID)
	if !ok {
		return NewNotFoundError("upload job", jobID)
	}
	return c.JSON(http.StatusOK, job)
}

// Request/Response types

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	TotalChunks int    `json:"totalChunks"`
}

func (r *completeUploadRequest) validate() error {
	if !storage.ValidUploadID(r.UploadID) {
		return NewValidationError("uploadId")
	}
	if r.SessionID == "" {
		return NewValidationError("sessionId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewValidationError("totalChunks")
	}
	return nil
}
