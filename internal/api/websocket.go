package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the session protocol
const (
	// Client -> Server messages
	MsgTypeStart = "start"
	MsgTypeBack  = "back"
	MsgTypePing  = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSession   = "session"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypeClosed    = "closed"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes session snapshots and accepts workflow commands
type WebSocketHandler struct {
	sessions       SessionManager
	upgrader       websocket.Upgrader
	maxMessageSize int64
	logger         *zap.Logger
}

// NewWebSocketHandler creates a new session WebSocket handler
func NewWebSocketHandler(sessions SessionManager, maxMessageSizeKB int, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxMessageSizeKB <= 0 {
		maxMessageSizeKB = 64
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		maxMessageSize: int64(maxMessageSizeKB) * 1024,
		logger:         logger.Named("ws"),
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	return c.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and runs the session protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	updates, unsubscribe, err := wsh.sessions.Subscribe(id)
	if err != nil {
		return FromDomainError(err)
	}
	defer unsubscribe()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.maxMessageSize)

	conn := &wsConn{ws: ws}
	log := wsh.logger.With(zap.String("session", id))
	log.Debug("client connected")

	conn.send(WSMessage{Type: MsgTypeConnected, ID: id})

	// Writer: forward snapshots until the subscription ends
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range updates {
			if err := conn.send(WSMessage{Type: MsgTypeSession, ID: id, Payload: mustJSON(snap)}); err != nil {
				log.Debug("failed to push snapshot", zap.Error(err))
			}
		}
		conn.send(WSMessage{Type: MsgTypeClosed, ID: id})
		ws.Close()
	}()

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("connection error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		case MsgTypeStart:
			wsh.command(conn, msg, func() error {
				_, err := wsh.sessions.Start(id)
				return err
			})
		case MsgTypeBack:
			wsh.command(conn, msg, func() error {
				_, err := wsh.sessions.Back(id)
				return err
			})
		default:
			wsh.sendError(conn, msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	unsubscribe()
	<-done
	log.Debug("client disconnected")
	return nil
}

// command runs a workflow operation. The new state reaches the client
// through the subscription; the reply only acknowledges or reports an error.
func (wsh *WebSocketHandler) command(conn *wsConn, msg WSMessage, op func() error) {
	if err := op(); err != nil {
		apiErr := FromDomainError(err)
		wsh.sendError(conn, msg.ID, apiErr.Message, apiErr.Code)
		return
	}
	conn.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})
}

func (wsh *WebSocketHandler) sendError(conn *wsConn, id, message, code string) {
	conn.send(WSMessage{
		Type: MsgTypeError,
		ID:   id,
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
