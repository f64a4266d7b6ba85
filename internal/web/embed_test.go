package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestHandler(t *testing.T) {
	staticFS := fstest.MapFS{
		"index.html":        {Data: []byte("<html>app</html>")},
		"assets/app-1a2.js": {Data: []byte("console.log(1)")},
		"favicon.ico":       {Data: []byte("ico")},
	}
	e := echo.New()
	e.GET("/*", Handler(staticFS))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
		wantCache  string
	}{
		{"root", "/", http.StatusOK, "<html>app</html>", "no-cache"},
		{"frontend route", "/tax-genius", http.StatusOK, "<html>app</html>", "no-cache"},
		{"unknown route", "/no/such/page", http.StatusOK, "<html>app</html>", "no-cache"},
		{"asset", "/assets/app-1a2.js", http.StatusOK, "console.log(1)", "public, max-age=31536000, immutable"},
		{"plain file", "/favicon.ico", http.StatusOK, "ico", ""},
		{"directory", "/assets", http.StatusOK, "<html>app</html>", "no-cache"},
		{"unknown api", "/api/nothing", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantCache != "" {
				assert.Equal(t, tt.wantCache, rec.Header().Get("Cache-Control"))
			}
		})
	}
}
