package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketConn adapts a *websocket.Conn to rpcswitch.Sender. Each frame is
// sent as a single text message; writes are serialized the same way
// SocketConn serializes its net.Conn writes.
type WebSocketConn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

func newWebSocketConn(ws *websocket.Conn, logger *slog.Logger) *WebSocketConn {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketConn{ws: ws, logger: logger}
}

// Send marshals v and writes it as one text message.
func (w *WebSocketConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying WebSocket connection.
func (w *WebSocketConn) Close() error {
	return w.ws.Close()
}

// ReadLoop reads text/binary messages until the peer closes the connection
// or a read error occurs, calling onFrame for each non-empty message.
func (w *WebSocketConn) ReadLoop(onFrame FrameHandler) error {
	for {
		_, data, err := w.ws.ReadMessage()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		onFrame(data)
	}
}

// WebSocketHandler upgrades HTTP connections to WebSocket and drives them
// through the broker exactly like Listener drives raw TCP connections.
type WebSocketHandler struct {
	broker *rpcswitch.Broker
	logger *slog.Logger
}

// NewWebSocketHandler returns an http.Handler suitable for mounting at a
// path such as /ws.
func NewWebSocketHandler(broker *rpcswitch.Broker, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{broker: broker, logger: logger}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := newWebSocketConn(ws, h.logger)
	bc := h.broker.Accept(r.RemoteAddr, conn)

	ctx := r.Context()
	err = conn.ReadLoop(func(line json.RawMessage) {
		h.broker.Handle(ctx, bc, line)
	})
	if err != nil {
		h.logger.Debug("websocket read loop ended", "remote", r.RemoteAddr, "error", err)
	}
	h.broker.Disconnect(bc)
}
