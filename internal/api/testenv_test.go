package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/thermal-analyzer/backend/internal/analysis"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/session"
	"github.com/thermal-analyzer/backend/internal/testutil"
	"github.com/thermal-analyzer/backend/internal/upload"
)

type testEnv struct {
	e        *echo.Echo
	store    *testutil.MockStorage
	sessions *session.Manager
	uploads  *upload.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewMockStorage()
	sessions := session.NewManager(session.Config{
		Analyzer: analysis.NewMockAnalyzer(30*time.Millisecond, nil),
		Files:    store,
	})
	uploads := upload.NewManager(store, func(sessionID string, file *models.UploadedFile) error {
		_, err := sessions.AttachFile(sessionID, file)
		return err
	}, nil)

	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: sessions,
		UploadMgr:  uploads,
		Version:    "test",
	}))

	t.Cleanup(func() {
		uploads.Wait()
		sessions.Shutdown()
	})
	return &testEnv{e: e, store: store, sessions: sessions, uploads: uploads}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) request(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return env.do(req)
}

func (env *testEnv) createSession(t *testing.T) *models.AnalysisSession {
	t.Helper()
	rec := env.request(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess models.AnalysisSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return &sess
}

func (env *testEnv) getSession(t *testing.T, id string) *models.AnalysisSession {
	t.Helper()
	rec := env.request(http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess models.AnalysisSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return &sess
}

func (env *testEnv) waitForState(t *testing.T, id string, state models.WorkflowState) *models.AnalysisSession {
	t.Helper()
	var sess *models.AnalysisSession
	require.Eventually(t, func() bool {
		sess = env.getSession(t, id)
		return sess.State == state
	}, 2*time.Second, 10*time.Millisecond)
	return sess
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.name))
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (env *testEnv) uploadFiles(t *testing.T, id string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, nil, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/file", body)
	req.Header.Set(echo.HeaderContentType, ct)
	return env.do(req)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}
