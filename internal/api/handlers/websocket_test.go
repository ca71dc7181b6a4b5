package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
)

func TestWebSocketHubRegisterUnregister(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	client := &WebSocketClient{
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	hub.Register(SessionTopic, client)
	if hub.ClientCount(SessionTopic) != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount(SessionTopic))
	}

	hub.Unregister(SessionTopic, client)
	if hub.ClientCount(SessionTopic) != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount(SessionTopic))
	}
	hub.mu.RLock()
	_, ok := hub.clients[SessionTopic]
	hub.mu.RUnlock()
	if ok {
		t.Error("Expected empty topic to be removed")
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	client := &WebSocketClient{
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	other := &WebSocketClient{
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	hub.Register(SessionTopic, client)
	hub.Register("other", other)

	hub.Broadcast(SessionTopic, newMessage(WSTypeSnapshot, map[string]string{"status": "running"}))

	select {
	case received := <-client.send:
		var decoded WSBroadcastMessage
		if err := json.Unmarshal(received, &decoded); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		if decoded.Type != WSTypeSnapshot {
			t.Errorf("Expected type %s, got %s", WSTypeSnapshot, decoded.Type)
		}
		if decoded.Timestamp == "" {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Expected to receive message")
	}

	select {
	case <-other.send:
		t.Error("Expected other topic to receive nothing")
	default:
	}
}

func TestWebSocketBroadcastDropsSlowClient(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	slow := &WebSocketClient{
		send: make(chan []byte),
		done: make(chan struct{}),
	}
	hub.Register(SessionTopic, slow)

	hub.Broadcast(SessionTopic, newMessage(WSTypeSnapshot, nil))

	if hub.ClientCount(SessionTopic) != 0 {
		t.Error("Expected slow client to be unregistered")
	}
	select {
	case <-slow.done:
	default:
		t.Error("Expected slow client to be closed")
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) session.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg struct {
		Type WSMessageType    `json:"type"`
		Data session.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if msg.Type != WSTypeSnapshot {
		t.Fatalf("Expected type %s, got %s", WSTypeSnapshot, msg.Type)
	}
	return msg.Data
}

func TestSessionWebSocketRelay(t *testing.T) {
	tr := newFakeTransport()
	s := session.New(tr, session.Options{Logger: quietLogger()})
	hub := NewWebSocketHub(quietLogger())
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.RelaySession(ctx, s)

	server := httptest.NewServer(hub.HandleSessionWebSocket(func() *session.Session { return s }))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	initial := readSnapshot(t, conn)
	if initial.Status != session.StatusNotStarted {
		t.Errorf("Expected initial status not_started, got %s", initial.Status)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(SessionTopic) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cfg := &deployment.Config{ID: "rec-1", ServiceName: "web", DeploymentTarget: "ecs"}
	if err := s.Submit(context.Background(), cfg, staticToken("tok")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	running := readSnapshot(t, conn)
	if running.Status != session.StatusRunning {
		t.Errorf("Expected relayed status running, got %s", running.Status)
	}
	if !running.Deploying {
		t.Error("Expected relayed snapshot to be deploying")
	}
}
