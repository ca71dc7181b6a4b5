package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// SessionTopic is the hub topic carrying session snapshots.
const SessionTopic = "session"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WSMessageType represents the type of a relayed message.
type WSMessageType string

const (
	WSTypeSnapshot WSMessageType = "session_snapshot"
	WSTypePing     WSMessageType = "ping"
	WSTypePong     WSMessageType = "pong"
)

// WSBroadcastMessage is the envelope sent to dashboard clients.
type WSBroadcastMessage struct {
	Type      WSMessageType `json:"type"`
	Timestamp string        `json:"timestamp"`
	Data      any           `json:"data"`
}

func newMessage(t WSMessageType, data any) WSBroadcastMessage {
	return WSBroadcastMessage{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// WebSocketClient represents a connected dashboard client.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// Close closes the client connection.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
}

// WebSocketHub fans session snapshots out to dashboard clients by topic.
type WebSocketHub struct {
	clients  map[string]map[*WebSocketClient]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHub creates a hub. With no allowed origins every origin is
// accepted.
func NewWebSocketHub(log *slog.Logger, allowedOrigins ...string) *WebSocketHub {
	if log == nil {
		log = logger.Default()
	}
	h := &WebSocketHub{
		clients: make(map[string]map[*WebSocketClient]bool),
		logger:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Register registers a client for a topic.
func (h *WebSocketHub) Register(topic string, client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*WebSocketClient]bool)
	}
	h.clients[topic][client] = true
}

// Unregister unregisters a client from a topic.
func (h *WebSocketHub) Unregister(topic string, client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
}

// ClientCount returns the number of clients subscribed to topic.
func (h *WebSocketHub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Broadcast sends a message to all clients subscribed to a topic. A client
// whose buffer is full is dropped.
func (h *WebSocketHub) Broadcast(topic string, message WSBroadcastMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WebSocketClient, 0, len(h.clients[topic]))
	for c := range h.clients[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			h.Unregister(topic, client)
			client.Close()
		}
	}
}

// RelaySession subscribes to s and broadcasts every later snapshot on
// SessionTopic until ctx is done or the session is closed. The subscription
// is in place when RelaySession returns.
func (h *WebSocketHub) RelaySession(ctx context.Context, s *session.Session) {
	updates := s.Subscribe()
	go func() {
		defer s.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				h.Broadcast(SessionTopic, newMessage(WSTypeSnapshot, snap))
			}
		}
	}()
}

// HandleSessionWebSocket returns the handler for GET /ws/session. A new
// client first receives the current snapshot of the session returned by
// current, then every later one.
func (h *WebSocketHub) HandleSessionWebSocket(current func() *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := &WebSocketClient{
			conn: conn,
			send: make(chan []byte, 256),
			done: make(chan struct{}),
		}
		if s := current(); s != nil {
			if data, err := json.Marshal(newMessage(WSTypeSnapshot, s.Snapshot())); err == nil {
				client.send <- data
			}
		}
		h.Register(SessionTopic, client)

		go h.writePump(client)
		go h.readPump(SessionTopic, client)
	}
}

// Close disconnects every client.
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*WebSocketClient]bool)
	h.mu.Unlock()

	for _, clients := range all {
		for c := range clients {
			c.Close()
		}
	}
}

func (h *WebSocketHub) writePump(c *WebSocketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump answers application pings and detects disconnects. Clients never
// send commands over this socket.
func (h *WebSocketHub) readPump(topic string, c *WebSocketClient) {
	defer func() {
		h.Unregister(topic, c)
		c.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("dashboard websocket closed", "error", err)
			}
			return
		}

		var msg struct {
			Type WSMessageType `json:"type"`
		}
		if json.Unmarshal(message, &msg) == nil && msg.Type == WSTypePing {
			pong, _ := json.Marshal(newMessage(WSTypePong, nil))
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}
