package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return ws
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, ws *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocketHandler_SessionProtocol(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	sess := env.createSession(t)
	ws := dialSession(t, srv, sess.ID)
	defer ws.Close()

	connected := readUntil(t, ws, MsgTypeConnected)
	assert.Equal(t, sess.ID, connected.ID)
	first := readUntil(t, ws, MsgTypeSession)
	assert.Contains(t, string(first.Payload), `"state":"upload"`)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
	pong := readUntil(t, ws, MsgTypePong)
	assert.Equal(t, "p1", pong.ID)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: "dance"}))
	errMsg := readUntil(t, ws, MsgTypeError)
	assert.Contains(t, string(errMsg.Payload), "INVALID_TYPE")

	// Attach over HTTP, then start over the socket and follow it to results.
	rec := env.uploadFiles(t, sess.ID, formFile{name: "site.png", contentType: "image/png", data: pngBytes(t)})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeStart, ID: "s1"}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	sawAck, sawResults := false, false
	for !(sawAck && sawResults) {
		var msg WSMessage
		require.NoError(t, ws.ReadJSON(&msg))
		switch msg.Type {
		case MsgTypeAck:
			sawAck = msg.ID == "s1"
		case MsgTypeSession:
			if strings.Contains(string(msg.Payload), `"state":"results"`) {
				sawResults = true
			}
		}
	}

	// Start again from results is rejected.
	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeStart, ID: "s2"}))
	conflict := readUntil(t, ws, MsgTypeError)
	assert.Equal(t, "s2", conflict.ID)
	assert.Contains(t, string(conflict.Payload), "CONFLICT")

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeBack, ID: "b1"}))
	ack := readUntil(t, ws, MsgTypeAck)
	assert.Equal(t, "b1", ack.ID)
}

func TestWebSocketHandler_SessionDeleted(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	sess := env.createSession(t)
	ws := dialSession(t, srv, sess.ID)
	defer ws.Close()
	readUntil(t, ws, MsgTypeSession)

	require.NoError(t, env.sessions.Delete(sess.ID))
	closed := readUntil(t, ws, MsgTypeClosed)
	assert.Equal(t, sess.ID, closed.ID)
}

func TestWebSocketHandler_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
