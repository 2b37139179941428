package apitest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	s.conns[conn] = true
	s.wsOpened++
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.conns, conn)
		s.wsMu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.wsMu.Lock()
		s.received = append(s.received, data)
		s.wsMu.Unlock()
	}
}

// WSURL returns the ws:// URL of the telemetry endpoint.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
}

// Push sends v as a JSON text frame to every connected client.
func (s *Server) Push(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.PushRaw(string(data))
}

// PushRaw sends a raw text frame to every connected client.
func (s *Server) PushRaw(text string) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections closes every telemetry connection from the server side.
func (s *Server) DropConnections() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

// Connections returns the number of live telemetry connections.
func (s *Server) Connections() int {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return len(s.conns)
}

// ConnectionsOpened returns how many telemetry connections were ever accepted.
func (s *Server) ConnectionsOpened() int {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.wsOpened
}

// Received returns the frames clients have sent.
func (s *Server) Received() [][]byte {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return append([][]byte{}, s.received...)
}
