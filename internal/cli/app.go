package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/domain/classifier"
	"github.com/launchdeck/launchdeck/internal/infrastructure/archive"
	"github.com/launchdeck/launchdeck/internal/infrastructure/credentials"
	"github.com/launchdeck/launchdeck/internal/infrastructure/scanner"
	"github.com/launchdeck/launchdeck/internal/infrastructure/store"
	"github.com/launchdeck/launchdeck/internal/infrastructure/transport"
	"github.com/launchdeck/launchdeck/pkg/version"
)

// completionWait bounds how long a command waits for the completion hook
// (record patch and transcript upload) after the session turned terminal.
const completionWait = 5 * time.Second

var errNoWorker = errors.New("worker.url is not configured")

// app holds the components shared by the commands.
type app struct {
	cfg       *Config
	log       *slog.Logger
	store     store.Store
	scanner   scanner.Scanner
	workspace *workspace.Workspace

	session *session.Session

	completed chan session.Completion
	closeOnce sync.Once
}

// newApp opens the record store and builds the workspace. It does not
// connect to the worker.
func newApp(ctx context.Context, c *Config, log *slog.Logger) (*app, error) {
	st, err := store.New(ctx, c.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	creds, err := credentials.New(ctx, c.Credentials)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to configure credentials: %w", err)
	}
	sc, err := scanner.New(c.Scanner)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to configure scanner: %w", err)
	}
	arc, err := archive.New(ctx, c.Archive)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to configure log archive: %w", err)
	}

	opts := workspace.Options{
		Logger:      log,
		Scanner:     sc,
		Classifier:  classifier.New(c.Policy()),
		Store:       st,
		Credentials: creds,
		Archiver:    arc,
		Debounce:    c.Reconcile.Debounce,
	}

	return &app{
		cfg:       c,
		log:       log,
		store:     st,
		scanner:   sc,
		workspace: workspace.New(opts),
		completed: make(chan session.Completion, 1),
	}, nil
}

// connect dials the worker and attaches a session to the workspace.
func (a *app) connect(ctx context.Context) (*session.Session, error) {
	if a.cfg.Worker.URL == "" {
		return nil, errNoWorker
	}
	header := http.Header{}
	header.Set("User-Agent", "launchdeck/"+version.Version)

	t, err := transport.Dial(ctx, a.cfg.Worker.URL, transport.Options{
		Logger:       a.log,
		Header:       header,
		Token:        a.cfg.Worker.Token,
		PingInterval: a.cfg.Worker.PingInterval,
	})
	if err != nil {
		return nil, err
	}

	s := session.New(t, session.Options{
		Logger:              a.log,
		StepTemplate:        session.DefaultSteps(),
		Markers:             a.cfg.Markers(),
		InlineArtifactLimit: a.cfg.Session.InlineArtifactLimit,
		OnComplete: func(c session.Completion) {
			a.workspace.HandleCompletion(c)
			select {
			case a.completed <- c:
			default:
			}
		},
	})
	a.session = s
	a.workspace.AttachSession(s)
	return s, nil
}

// waitCompletion waits for the completion hook to finish, if one is
// coming. Failures reported as a plain text frame never produce one.
func (a *app) waitCompletion(ctx context.Context) (session.Completion, bool) {
	timer := time.NewTimer(completionWait)
	defer timer.Stop()
	select {
	case c := <-a.completed:
		return c, true
	case <-timer.C:
		return session.Completion{}, false
	case <-ctx.Done():
		return session.Completion{}, false
	}
}

// Close flushes pending record writes and releases every connection.
func (a *app) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.workspace.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if a.session != nil {
			if err := a.session.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
