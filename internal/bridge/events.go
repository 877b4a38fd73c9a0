package bridge

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Basic Auth handles security; allow all origins
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const writeTimeout = 5 * time.Second

// handleEventStream upgrades to a WebSocket and pushes each QMP event as a
// JSON text frame until the client goes away or the monitor fails.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Nothing is expected from the client; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		events, err := s.machine.Events()
		for _, event := range events {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if werr := conn.WriteJSON(event); werr != nil {
				return
			}
		}
		if err != nil {
			log.Printf("bridge: event stream closed: %v", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "monitor unavailable"),
				time.Now().Add(writeTimeout))
			return
		}
	}
}
