// handlers_files.go - Held image handlers
package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/thermal-analyzer/backend/internal/storage"
	"github.com/thermal-analyzer/backend/internal/upload"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store           storage.Store
	maxPreviewBytes int64
}

// NewFileHandler creates a new file handler. A maxPreviewBytes of zero
// serves previews of any size.
func NewFileHandler(store storage.Store, maxPreviewBytes int64) FileHandler {
	return &FileHandlerImpl{
		store:           store,
		maxPreviewBytes: maxPreviewBytes,
	}
}

// contentType prefers the declared type, then the sniffed one
func contentType(declared, detected, name string) string {
	if declared != "" {
		return declared
	}
	if detected != "" {
		return detected
	}
	if m, ok := upload.MIMEForExtension(name); ok {
		return m
	}
	return echo.MIMEOctetStream
}

// HandleFileContent streams the raw image bytes
func (h *FileHandlerImpl) HandleFileContent(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	rc, err := h.store.Open(id)
	if err != nil {
		return FromDomainError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Stream(http.StatusOK, contentType(info.Type, info.DetectedType, info.Name), rc)
}

// HandleFilePreview returns the image as a data URL
func (h *FileHandlerImpl) HandleFilePreview(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	if h.maxPreviewBytes > 0 && info.Size > h.maxPreviewBytes {
		return NewPayloadTooLargeError("image too large for an inline preview")
	}

	rc, err := h.store.Open(id)
	if err != nil {
		return FromDomainError(err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if h.maxPreviewBytes > 0 {
		src = io.LimitReader(rc, h.maxPreviewBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return NewInternalError("failed to read file", err)
	}
	if h.maxPreviewBytes > 0 && int64(len(data)) > h.maxPreviewBytes {
		return NewPayloadTooLargeError("image too large for an inline preview")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":         info.ID,
		"name":       info.Name,
		"size":       info.Size,
		"sizeMb":     info.SizeMB(),
		"previewUrl": upload.PreviewDataURL(info.Name, info.Type, data),
	})
}
