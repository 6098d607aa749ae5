package frontend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/browsercore/browsercore/internal/eventbus"
)

// upgrader restricts WebSocket upgrades to same-origin or local-development
// callers, guarding against cross-site WebSocket hijacking.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		allowed := []string{"http://127.0.0.1", "http://localhost", "https://127.0.0.1", "https://localhost"}
		for _, a := range allowed {
			if strings.HasPrefix(origin, a) {
				return true
			}
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents upgrades to a WebSocket and relays every event-bus topic
// named by the "topics" query parameter (comma-separated), or everything
// when it's absent.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var topics []eventbus.Topic
	for _, t := range splitCSV(r.URL.Query().Get("topics")) {
		topics = append(topics, eventbus.Topic(t))
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.api.StreamEvents(topics...)
	defer s.api.StopStream(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
