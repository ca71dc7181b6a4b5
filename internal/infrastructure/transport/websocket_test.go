package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
)

var upgrader = websocket.Upgrader{}

var deploymentConfig = deployment.Config{ID: "rec-1", ServiceName: "web"}

type staticToken string

func (s staticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// echoWorker sends a greeting frame, echoes the first frame it receives and
// then closes normally.
func echoWorker(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deploy_steps","payload":[]}`))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, msg)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
}

func TestWebSocketRoundTrip(t *testing.T) {
	server := echoWorker(t)
	defer server.Close()

	opts := quietOptions()
	opts.Token = "tok"
	ctx := context.Background()

	ws, err := Dial(ctx, wsURL(server), opts)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	greeting, err := ws.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !strings.Contains(string(greeting), "deploy_steps") {
		t.Errorf("Unexpected greeting %s", greeting)
	}

	if err := ws.Send(ctx, []byte(`{"type":"service_logs","payload":{"serviceName":"api"}}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	echo, err := ws.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !strings.Contains(string(echo), "service_logs") {
		t.Errorf("Expected echoed frame, got %s", echo)
	}

	if _, err := ws.Receive(ctx); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Expected session.ErrClosed after a normal close, got %v", err)
	}
}

func TestWebSocketReceiveCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	ws, err := Dial(context.Background(), wsURL(server), quietOptions())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := ws.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline error, got %v", err)
	}
}

func TestWebSocketSendAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	ws, err := Dial(context.Background(), wsURL(server), quietOptions())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if err := ws.Send(context.Background(), []byte("x")); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Expected session.ErrClosed, got %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := Dial(context.Background(), wsURL(server), quietOptions()); err == nil {
		t.Error("Expected dial to fail on a non-upgrade response")
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deploy_logs","payload":{"id":"build","msg":"built ✅"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"deploy_complete","payload":{"success":true,"deployUrl":"https://web.example.com"}}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	opts := quietOptions()
	ws, err := Dial(context.Background(), wsURL(server), opts)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	s := session.New(ws, session.Options{Logger: opts.Logger})
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	if err := s.Submit(context.Background(), &deploymentConfig, staticToken("tok")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected orderly end, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for session to end")
	}

	snap := s.Snapshot()
	if snap.Status != session.StatusSuccess {
		t.Errorf("Expected success, got %s (%s)", snap.Status, snap.Error)
	}
	if snap.ActiveConfig == nil || snap.ActiveConfig.DeployURL != "https://web.example.com" {
		t.Errorf("Expected deploy url on active config, got %+v", snap.ActiveConfig)
	}
	if snap.Connectivity != session.ConnectivityClosed {
		t.Errorf("Expected connectivity closed, got %s", snap.Connectivity)
	}
}
