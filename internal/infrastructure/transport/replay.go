package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/launchdeck/launchdeck/internal/app/session"
)

// Replay is a session.Transport that plays back a recorded worker
// transcript, one frame per line. Blank lines and lines starting with '#'
// are skipped. Sent frames are kept for inspection.
type Replay struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	sent    [][]byte
	closed  bool
}

// NewReplay reads frames from r.
func NewReplay(r io.Reader) *Replay {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &Replay{scanner: sc}
}

func (r *Replay) Send(ctx context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return session.ErrClosed
	}
	r.sent = append(r.sent, append([]byte(nil), frame...))
	return nil
}

// Receive returns the next recorded frame, or session.ErrClosed once the
// transcript is exhausted.
func (r *Replay) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, session.ErrClosed
	}
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return append([]byte(nil), line...), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return nil, session.ErrClosed
}

// Sent returns the frames sent so far.
func (r *Replay) Sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.sent...)
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
