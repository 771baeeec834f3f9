package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bucknalla/go-gps-navigator/gps"
)

const writeWait = 10 * time.Second

// wsMessage is the envelope for everything sent or received over /api/ws.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}
	defer s.removeClient(c)

	// Send current status before registering so it arrives ahead of events.
	if err := c.write(wsMessage{Type: "snapshot", Data: s.engine.Snapshot()}); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		conn.Close()
		return
	}
	s.mu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("websocket client connected", "clients", n)

	// Listen for fixes reported by the client
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Debug("websocket read ended", "error", err)
			return
		}
		s.handleClientMessage(c, msg)
	}
}

func (s *Server) handleClientMessage(c *client, msg inboundMessage) {
	switch msg.Type {
	case "fix":
		var f gps.Fix
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			c.write(wsMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}
		if err := s.pushFix(f); err != nil {
			c.write(wsMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
		}
	case "snapshot":
		c.write(wsMessage{Type: "snapshot", Data: s.engine.Snapshot()})
	default:
		s.logger.Debug("ignoring websocket message", "type", msg.Type)
	}
}

func (s *Server) broadcastToClients(msg wsMessage) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			s.removeClient(c)
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()

	c.conn.Close()
	if ok {
		s.logger.Info("websocket client disconnected", "clients", n)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.mu.Unlock()
		c.conn.Close()
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
