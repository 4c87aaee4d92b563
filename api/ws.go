package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API binds to localhost in the default deployment; cross-origin
		// browser clients are expected for local dashboards.
		return true
	},
}

// GET /ws
//
// stream upgrades the connection and forwards every bus event as a JSON
// frame. A slow or broken client is disconnected; the run itself is never
// blocked by a consumer.
func (s *Server) stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return err
	}

	events := make(chan core.Event, s.buffer)
	sub := s.bus.On(core.EventAny, func(ev core.Event) error {
		select {
		case events <- ev:
		default:
			// Client queue full; the write pump notices on close.
		}
		return nil
	})

	go s.writePump(conn, events, func() { s.bus.Off(sub) })
	go s.readPump(conn)

	return nil
}

// writePump serializes events to one client until a write fails or the
// connection closes.
func (s *Server) writePump(conn *websocket.Conn, events <-chan core.Event, unsubscribe func()) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket client dropped", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects. The stream is
// one-way; control actions go through the HTTP endpoints.
func (s *Server) readPump(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
