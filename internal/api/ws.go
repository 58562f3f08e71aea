package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsWriteTimeout bounds a single event write to a watch client.
	wsWriteTimeout = 10 * time.Second
	// wsPingInterval keeps idle watch connections alive through proxies.
	wsPingInterval = 30 * time.Second
	// wsEventBuffer is the per-subscriber event buffer. A client that
	// falls this far behind starts missing events.
	wsEventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The watch stream is an operator tool on a trusted network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsWatch streams bus events to a WebSocket client as JSON
// frames until the client disconnects or the bus is torn down.
//
// GET /v1/events/watch
func (s *Server) handleEventsWatch(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Not configured", "event bus not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := s.bus.Subscribe(wsEventBuffer)
	defer s.bus.Unsubscribe(events)

	s.logger.Info("event watch client connected", "remote", r.RemoteAddr)
	defer s.logger.Info("event watch client disconnected", "remote", r.RemoteAddr)

	// Drain client frames so close and pong frames are processed. The
	// read error doubles as the disconnect signal.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event watch write failed", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
