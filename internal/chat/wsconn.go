package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var errConnClosed = errors.New("websocket closed")

// WSConn adapts a gorilla websocket to Conn. Writes are serialized so the
// hub and the ping loop can share the socket.
type WSConn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws, done: make(chan struct{})}
}

func (c *WSConn) Send(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

func (c *WSConn) write(messageType int, data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// Close sends a close frame, best effort, and closes the socket. Safe to
// call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve registers conn in roomID as userID, replays history and then feeds
// every inbound text frame to Broadcast until the client goes away, a
// message cannot be persisted, or ctx is cancelled. The connection is
// always unregistered and closed on return.
func (h *Hub) Serve(ctx context.Context, conn *WSConn, roomID, userID int64) error {
	defer conn.Close()

	if err := h.Connect(ctx, conn, roomID, userID); err != nil {
		return err
	}
	defer h.Disconnect(conn)

	go conn.pingLoop()

	// A blocked ReadMessage only returns once the socket is closed.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ws := conn.ws
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("chat read failed",
					zap.Int64("room_id", roomID),
					zap.Int64("user_id", userID),
					zap.Error(err),
				)
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if _, err := h.Broadcast(ctx, conn, string(data)); err != nil {
			if errors.Is(err, ErrNotRegistered) {
				return nil
			}
			h.logger.Error("chat broadcast failed",
				zap.Int64("room_id", roomID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return err
		}
	}
}
