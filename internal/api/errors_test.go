package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermal-analyzer/backend/internal/session"
	"github.com/thermal-analyzer/backend/internal/storage"
	"github.com/thermal-analyzer/backend/internal/upload"
)

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported format", fmt.Errorf("upload: %w", upload.ErrUnsupportedFormat), http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"},
		{"no file", upload.ErrNoFile, http.StatusBadRequest, "BAD_REQUEST"},
		{"session not found", fmt.Errorf("%w: abc", session.ErrSessionNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"file not found", storage.ErrFileNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid upload id", fmt.Errorf("%w: \"..\"", storage.ErrInvalidUploadID), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid transition", fmt.Errorf("%w: nope", session.ErrInvalidTransition), http.StatusConflict, "CONFLICT"},
		{"too many sessions", session.ErrTooManySessions, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"shutting down", session.ErrManagerClosed, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"api error passes through", NewValidationError("id"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromDomainError(tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", NewConflictError("busy"), http.StatusConflict, "CONFLICT"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"domain error", session.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeAPIError(t, rec).Code)
		})
	}
}
