package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/session"
)

// wsConn adapts a gorilla connection to session.Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration
}

func newWSConn(conn *websocket.Conn, readLimit int64, writeTimeout, pingInterval time.Duration) *wsConn {
	c := &wsConn{conn: conn, writeTimeout: writeTimeout}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	if pingInterval > 0 {
		c.pongWait = 2 * pingInterval
		conn.SetReadDeadline(time.Now().Add(c.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.pongWait))
		})
	}
	return c
}

// errBinaryFrame ends a connection that sent a binary frame; rooms relay
// text payloads only.
var errBinaryFrame = errors.New("binary frames are not supported")

func (c *wsConn) ReadMessage() ([]byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.TextMessage {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames only"),
			time.Now().Add(time.Second))
		return nil, errBinaryFrame
	}
	if c.pongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return data, nil
}

func (c *wsConn) WriteMessage(payload []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Ping() error {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	// Upgrade to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	relay := s.cfg.Relay
	wc := newWSConn(conn, s.cfg.Server.ReadLimit, relay.WriteTimeout, relay.PingInterval)
	p := session.NewParticipant(uuid.New().String(), relay.SendBuffer)

	err = s.endpoint.Serve(s.baseCtx, room, wc, p)
	switch {
	case err == nil, s.baseCtx.Err() != nil:
	case errors.Is(err, session.ErrRoomFull), errors.Is(err, errBinaryFrame):
		s.logger.Info("connection refused", zap.String("room", room), zap.Error(err))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
	default:
		s.logger.Debug("connection ended", zap.String("room", room), zap.String("participant", p.ID), zap.Error(err))
	}
}
