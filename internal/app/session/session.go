// Package session implements the deployment session protocol client: a
// state machine fed by frames from a remote deploy worker, tracking pipeline
// steps, live logs and the outcome of the deployment in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// ConnectionLostMessage is the session error set when the transport fails
// while a deployment is in flight.
const ConnectionLostMessage = "connection lost — deployment may have failed"

var (
	// ErrClosed is returned by a Transport after an orderly close.
	ErrClosed = errors.New("session: transport closed")
	// ErrNoCredentials is returned by Submit when no credential provider is set.
	ErrNoCredentials = errors.New("session: no credentials")
)

// Status is the coarse-grained status of a session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// IsTerminal returns true for Success and Error.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Connectivity describes the transport, independently of the deployment.
type Connectivity string

const (
	ConnectivityOpen   Connectivity = "open"
	ConnectivityClosed Connectivity = "closed"
	ConnectivityError  Connectivity = "error"
)

// Transport is one persistent bidirectional frame connection.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	// Receive blocks until the next frame arrives. It returns ErrClosed
	// (possibly wrapped) after an orderly close.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Credentials supplies the opaque bearer token sent with a deployment.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// Completion is handed to the completion hook when a deployment finishes.
type Completion struct {
	deployment.Completion

	// Config is the in-flight configuration after the completion was
	// applied. Nil if no submission was made from this session.
	Config *deployment.Config
	// Steps is the final step list.
	Steps []Step
}

// Options configure a Session. Zero values select defaults.
type Options struct {
	Logger              *slog.Logger
	StepTemplate        []StepDef
	Markers             *Markers
	InlineArtifactLimit int
	// OnComplete is called once per deploy_complete frame, outside the
	// session lock.
	OnComplete func(Completion)
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Status          Status             `json:"status"`
	Error           string             `json:"error,omitempty"`
	Steps           []Step             `json:"steps"`
	LiveLogs        []string           `json:"liveLogs"`
	Connectivity    Connectivity       `json:"connectivity"`
	Deploying       bool               `json:"deploying"`
	ActiveConfig    *deployment.Config `json:"activeConfig,omitempty"`
	UnknownFrames   int                `json:"unknownFrames"`
	MalformedFrames int                `json:"malformedFrames"`
}

// Session is the state of one logical deployment-monitoring connection.
// Frames are applied in arrival order; readers may take snapshots
// concurrently.
type Session struct {
	transport   Transport
	logger      *slog.Logger
	template    []StepDef
	markers     Markers
	inlineLimit int
	onComplete  func(Completion)

	mu              sync.RWMutex
	status          Status
	err             string
	registry        *Registry
	liveLogs        []string
	connectivity    Connectivity
	wasDeploying    bool
	active          *deployment.Config
	unknownFrames   int
	malformedFrames int
	closed          bool
	subscribers     []chan Snapshot
}

// New creates a session over an open transport.
func New(t Transport, opts Options) *Session {
	s := &Session{
		transport:    t,
		logger:       opts.Logger,
		template:     opts.StepTemplate,
		inlineLimit:  opts.InlineArtifactLimit,
		onComplete:   opts.OnComplete,
		status:       StatusNotStarted,
		liveLogs:     []string{},
		connectivity: ConnectivityOpen,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.template == nil {
		s.template = DefaultSteps()
	}
	if opts.Markers != nil {
		s.markers = *opts.Markers
	} else {
		s.markers = DefaultMarkers()
	}
	if s.inlineLimit <= 0 {
		s.inlineLimit = DefaultInlineArtifactLimit
	}
	s.registry = NewRegistry(s.template)
	return s
}

// Run reads frames until the transport fails or ctx is cancelled. An orderly
// end returns nil; a transport failure is applied to the session and
// returned.
func (s *Session) Run(ctx context.Context) error {
	for {
		data, err := s.transport.Receive(ctx)
		if err != nil {
			orderly := errors.Is(err, ErrClosed) || ctx.Err() != nil || s.isClosed()
			s.handleTransportFailure(err, orderly)
			if orderly {
				return nil
			}
			return fmt.Errorf("session transport failed: %w", err)
		}
		s.Handle(data)
	}
}

// Handle applies one inbound frame.
func (s *Session) Handle(data []byte) {
	frame := DecodeFrame(data)
	var done *Completion

	s.mu.Lock()
	switch f := frame.(type) {
	case LiveLogFrame:
		s.liveLogs = append(s.liveLogs, f.Lines...)

	case DeployLogFrame:
		if s.registry.AppendLog(f.StepID, f.Message, s.markers) {
			s.logger.Debug("synthesized step from log", "step_id", f.StepID)
		}
		if !s.status.IsTerminal() {
			s.status = StatusRunning
		}

	case DeployStepsFrame:
		s.registry.Merge(f.Steps)

	case DeployCompleteFrame:
		done = s.completeLocked(f.Completion())

	case UnknownFrame:
		s.unknownFrames++
		s.logger.Warn("ignoring unknown frame", "frame_type", string(f.Kind))

	case MalformedFrame:
		s.malformedFrames++
		s.logger.Warn("ignoring malformed frame", "frame_type", string(f.Kind), "error", f.Err)

	case TextFrame:
		s.status = StatusError
		s.err = f.Text
		s.wasDeploying = false
		s.logger.Info("worker reported a fatal error", "error", f.Text)
	}
	s.logger.Debug("applied frame", "frame_type", string(frame.Type()), "status", string(s.status))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	if done != nil && s.onComplete != nil {
		s.onComplete(*done)
	}
}

func (s *Session) completeLocked(c deployment.Completion) *Completion {
	if c.Success {
		s.status = StatusSuccess
		s.err = ""
		if s.active != nil {
			s.active.ApplyCompletion(c)
		}
	} else {
		s.status = StatusError
		s.err = c.Error
		if s.err == "" {
			s.err = "deployment failed"
		}
		s.logger.Info("deployment failed", "error", s.err)
	}
	s.wasDeploying = false

	return &Completion{
		Completion: c,
		Config:     s.active.Clone(),
		Steps:      s.registry.Steps(),
	}
}

func (s *Session) handleTransportFailure(err error, orderly bool) {
	s.mu.Lock()
	if orderly {
		s.connectivity = ConnectivityClosed
	} else {
		s.connectivity = ConnectivityError
	}
	if s.wasDeploying {
		s.status = StatusError
		s.err = ConnectionLostMessage
		s.wasDeploying = false
		s.logger.Warn("transport lost during deployment", "error", err)
	} else if !orderly {
		s.logger.Warn("transport failed", "error", err)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

// Submit starts a deployment: it resets the step registry, marks the session
// running and sends a single deploy frame. A failure to obtain credentials
// or to encode the frame leaves the session untouched; a failure to send is
// a transport failure.
func (s *Session) Submit(ctx context.Context, cfg *deployment.Config, creds Credentials) error {
	if s.isClosed() {
		return ErrClosed
	}
	if creds == nil {
		return ErrNoCredentials
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}
	frame, err := EncodeDeploy(cfg, token, s.inlineLimit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.registry.Reset(s.template)
	s.status = StatusRunning
	s.err = ""
	s.wasDeploying = true
	s.active = cfg.Clone()
	s.active.Status = deployment.StatusDeploying
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	s.logger.Info("submitting deployment",
		"service", cfg.ServiceName,
		"target", string(cfg.DeploymentTarget),
		"frame_bytes", len(frame),
	)
	if err := s.transport.Send(ctx, frame); err != nil {
		s.handleTransportFailure(err, false)
		return fmt.Errorf("failed to send deploy frame: %w", err)
	}
	return nil
}

// SubscribeLogs asks the worker to stream live logs for a service.
func (s *Session) SubscribeLogs(ctx context.Context, serviceName string) error {
	if s.isClosed() {
		return ErrClosed
	}
	frame, err := EncodeServiceLogs(serviceName)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, frame); err != nil {
		return fmt.Errorf("failed to send service_logs frame: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Status:          s.status,
		Error:           s.err,
		Steps:           s.registry.Steps(),
		LiveLogs:        append([]string{}, s.liveLogs...),
		Connectivity:    s.connectivity,
		Deploying:       s.wasDeploying,
		ActiveConfig:    s.active.Clone(),
		UnknownFrames:   s.unknownFrames,
		MalformedFrames: s.malformedFrames,
	}
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow subscribers miss intermediate snapshots.
func (s *Session) Subscribe() chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 64)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (s *Session) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Session) emit(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default: // drop if buffer full
		}
	}
}

// Close closes the transport and all subscriptions. A deployment still in
// flight is reported as failed once Run observes the closed transport.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	return s.transport.Close()
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
