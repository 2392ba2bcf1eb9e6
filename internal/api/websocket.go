package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hc1200093-glitch/L-eclaireur/internal/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the session protocol
const (
	// Client -> Server messages
	MsgTypePing   = "ping"
	MsgTypeCancel = "cancel"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSnapshot  = "snapshot"
	MsgTypeClosed    = "closed"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error frame.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes a controller snapshot on every state change.
type WebSocketHandler struct {
	registry SessionRegistry
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler creates a new session stream handler
func NewWebSocketHandler(registry SessionRegistry, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS middleware already filters browser origins
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log: log.Named("api"),
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsConn) send(msgType string, payload interface{}) error {
	msg := WSMessage{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = raw
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and streams snapshots until the
// client leaves or the session closes. Clients may send "ping" and "cancel".
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ctl, err := lookup(c, wsh.registry)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log := wsh.log.With(zap.String("session", ctl.ID()))
	log.Debug("websocket connected")

	conn := &wsConn{ws: ws}
	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	if err := conn.send(MsgTypeConnected, ctl.Snapshot()); err != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wsh.readLoop(conn, ctl, log)
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.send(MsgTypeClosed, nil)
				return nil
			}
			if err := conn.send(MsgTypeSnapshot, snap); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return nil
			}
		case <-done:
			log.Debug("websocket disconnected")
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(conn *wsConn, ctl *session.Controller, log *zap.Logger) {
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			_ = conn.send(MsgTypePong, nil)
		case MsgTypeCancel:
			// The resulting snapshot is pushed through the subscription.
			ctl.Cancel()
		default:
			_ = conn.send(MsgTypeError, WSErrorResponse{
				Message: "Unknown message type: " + msg.Type,
				Code:    "INVALID_TYPE",
			})
		}
	}
}
