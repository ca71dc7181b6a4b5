// Package transport connects a session to the deploy worker over a
// websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

const (
	// DefaultPingInterval is how often a ping is sent to keep the
	// connection alive.
	DefaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxFrameSize        = 8 << 20
)

// Options configure Dial. Zero values select defaults.
type Options struct {
	Logger       *slog.Logger
	Header       http.Header
	Token        string
	PingInterval time.Duration
	Dialer       *websocket.Dialer
}

// WebSocket is a session.Transport over a gorilla websocket connection.
// Send may be called concurrently; Receive must be called from one
// goroutine.
type WebSocket struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	pongWait time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

var _ session.Transport = (*WebSocket)(nil)

// Dial opens a websocket connection to the worker at url.
func Dial(ctx context.Context, url string, opts Options) (*WebSocket, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := opts.Dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	w := &WebSocket{
		conn:     conn,
		logger:   opts.Logger,
		pongWait: 2 * opts.PingInterval,
		done:     make(chan struct{}),
	}
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(w.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.pongWait))
	})

	go w.pingPump(opts.PingInterval)
	w.logger.Debug("connected to worker", "url", url)
	return w, nil
}

func (w *WebSocket) pingPump(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.write(websocket.PingMessage, nil); err != nil {
				w.logger.Debug("ping failed", "error", err)
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *WebSocket) write(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, data)
}

// Send writes one text frame.
func (w *WebSocket) Send(ctx context.Context, frame []byte) error {
	if w.isClosed() {
		return session.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.write(websocket.TextMessage, frame)
}

// Receive blocks until the next frame arrives, the connection fails or ctx
// is cancelled. A normal close by either side returns session.ErrClosed.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		w.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := w.conn.ReadMessage()
	if err == nil {
		return data, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if w.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, fmt.Errorf("%w: %v", session.ErrClosed, err)
	}
	return nil, err
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := w.write(websocket.CloseMessage, msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		w.logger.Debug("failed to send close frame", "error", err)
	}
	return w.conn.Close()
}

func (w *WebSocket) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
