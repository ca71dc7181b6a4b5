// Package workspace ties one deployment draft to its scanner, classifier,
// persisted record, reconciler and live session.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/launchdeck/launchdeck/internal/app/reconcile"
	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/domain/classifier"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/domain/project"
	"github.com/launchdeck/launchdeck/internal/infrastructure/archive"
	"github.com/launchdeck/launchdeck/internal/infrastructure/store"
	"github.com/launchdeck/launchdeck/internal/pkg/clock"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

var (
	// ErrNotDeployable is returned by Submit when the draft has no target.
	ErrNotDeployable = errors.New("workspace: project is not deployable")
	// ErrNoSession is returned when no session is attached.
	ErrNoSession = errors.New("workspace: no session attached")
	// ErrNoScanner is returned by Scan when no scanner is configured.
	ErrNoScanner = errors.New("workspace: no scanner configured")
	// ErrDeploymentInFlight is returned by Submit while the session is
	// still running a deployment.
	ErrDeploymentInFlight = errors.New("workspace: deployment already in flight")
)

// Scanner returns the detected metadata of a repository.
type Scanner interface {
	Scan(ctx context.Context, repo string) (*project.Metadata, error)
}

// Options configure a Workspace. Store is required; everything else is
// optional.
type Options struct {
	Logger      *slog.Logger
	Scanner     Scanner
	Classifier  *classifier.Classifier
	Store       store.Store
	Credentials session.Credentials
	Archiver    archive.Archiver
	Clock       clock.Clock
	Debounce    time.Duration

	// Timeout bounds store and archive calls made outside a request.
	Timeout time.Duration
}

// ScanResult is the outcome of Workspace.Scan.
type ScanResult struct {
	Metadata *project.Metadata    `json:"metadata"`
	Decision *classifier.Decision `json:"decision,omitempty"`
	Verdict  classifier.Verdict   `json:"verdict"`
	Message  string               `json:"message,omitempty"`
}

// Workspace owns the draft being edited. All edits go through it so the
// reconciler sees every change.
type Workspace struct {
	logger     *slog.Logger
	scanner    Scanner
	classifier *classifier.Classifier
	store      store.Store
	creds      session.Credentials
	archiver   archive.Archiver
	clock      clock.Clock
	timeout    time.Duration
	reconciler *reconcile.Reconciler

	submitMu sync.Mutex

	mu      sync.RWMutex
	draft   *deployment.Config
	session *session.Session
	archive string
}

// New creates a workspace with an empty draft.
func New(opts Options) *Workspace {
	w := &Workspace{
		logger:     opts.Logger,
		scanner:    opts.Scanner,
		classifier: opts.Classifier,
		store:      opts.Store,
		creds:      opts.Credentials,
		archiver:   opts.Archiver,
		clock:      opts.Clock,
		timeout:    opts.Timeout,
		draft:      &deployment.Config{Status: deployment.StatusDraft},
	}
	if w.logger == nil {
		w.logger = logger.Default()
	}
	if w.classifier == nil {
		w.classifier = classifier.New(nil)
	}
	if w.clock == nil {
		w.clock = clock.Real()
	}
	if w.timeout <= 0 {
		w.timeout = 30 * time.Second
	}
	w.reconciler = reconcile.New(opts.Store, reconcile.Options{
		Logger:   w.logger,
		Clock:    w.clock,
		Debounce: opts.Debounce,
		Timeout:  w.timeout,
	})
	return w
}

// AttachSession connects a session to the workspace. The session must have
// been created with OnComplete set to the workspace's HandleCompletion.
func (w *Workspace) AttachSession(s *session.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

// Session returns the attached session, or nil.
func (w *Workspace) Session() *session.Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session
}

// Reconciler returns the reconciler writing the draft to the store.
func (w *Workspace) Reconciler() *reconcile.Reconciler {
	return w.reconciler
}

// Draft returns a copy of the current draft.
func (w *Workspace) Draft() *deployment.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.draft.Clone()
}

// Update applies fn to the draft and schedules reconciliation.
func (w *Workspace) Update(fn func(*deployment.Config)) *deployment.Config {
	w.mu.Lock()
	fn(w.draft)
	draft := w.draft.Clone()
	w.mu.Unlock()

	w.reconciler.OnDraftChange(draft)
	return draft
}

// Replace swaps the whole draft, keeping the record identity, and schedules
// reconciliation.
func (w *Workspace) Replace(cfg *deployment.Config) *deployment.Config {
	return w.Update(func(d *deployment.Config) {
		id := d.ID
		*d = *cfg.Clone()
		if d.ID == "" {
			d.ID = id
		}
	})
}

// Load makes the stored record id the current draft.
func (w *Workspace) Load(ctx context.Context, id string) (*deployment.Config, error) {
	doc, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	cfg, err := store.DecodeConfig(id, doc)
	if err != nil {
		return nil, err
	}

	w.reconciler.Stop()
	if err := w.reconciler.Seed(cfg); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.draft = cfg.Clone()
	w.mu.Unlock()
	return cfg, nil
}

// EnsureRecord creates the deployment record for the draft if it has none
// and returns the record ID.
func (w *Workspace) EnsureRecord(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.draft.ID != "" {
		id := w.draft.ID
		w.mu.Unlock()
		return id, nil
	}
	w.draft.ID = uuid.New().String()
	if w.draft.Status == "" {
		w.draft.Status = deployment.StatusDraft
	}
	draft := w.draft.Clone()
	w.mu.Unlock()

	patch, err := deployment.Project(draft)
	if err != nil {
		return "", err
	}
	patch["status"] = string(draft.Status)
	if err := w.store.MergePatch(ctx, draft.ID, patch); err != nil {
		w.mu.Lock()
		w.draft.ID = ""
		w.mu.Unlock()
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	if err := w.reconciler.Seed(draft); err != nil {
		return "", err
	}
	w.logger.Info("created deployment record", "record_id", draft.ID)
	return draft.ID, nil
}

// Scan fetches metadata for repo, classifies it and records the decision on
// the draft. A project that is not deployable clears the draft's target.
func (w *Workspace) Scan(ctx context.Context, repo string) (*ScanResult, error) {
	if w.scanner == nil {
		return nil, ErrNoScanner
	}
	m, err := w.scanner.Scan(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", repo, err)
	}
	result := w.Classify(m)

	w.Update(func(d *deployment.Config) {
		applyMetadata(d, m)
		if strings.Contains(repo, "://") && d.RepoURL == "" {
			d.RepoURL = repo
		}
		if result.Decision == nil {
			d.DeploymentTarget = ""
			d.TargetReason = result.Message
			d.TargetWarnings = nil
			return
		}
		d.DeploymentTarget = result.Decision.Target
		d.TargetReason = result.Decision.Reason
		d.TargetWarnings = append([]string(nil), result.Decision.Warnings...)
	})

	w.logger.Info("scanned project",
		"repo", repo,
		"verdict", string(result.Verdict),
		"target", targetOf(result.Decision),
	)
	return result, nil
}

// Classify runs the classifier on m without touching the draft.
func (w *Workspace) Classify(m *project.Metadata) *ScanResult {
	d, verdict := w.classifier.ClassifyDetailed(m)
	return &ScanResult{
		Metadata: m,
		Decision: d,
		Verdict:  verdict,
		Message:  verdict.Message(),
	}
}

func targetOf(d *classifier.Decision) string {
	if d == nil {
		return ""
	}
	return string(d.Target)
}

// applyMetadata fills draft fields the user has not set yet.
func applyMetadata(d *deployment.Config, m *project.Metadata) {
	if d.ServiceName == "" {
		d.ServiceName = m.Name
	}
	if d.InstallCommand == "" {
		d.InstallCommand = m.InstallCommand
	}
	if d.BuildCommand == "" {
		d.BuildCommand = m.BuildCommand
	}
	if d.RunCommand == "" {
		d.RunCommand = m.RunCommand
	}
	if d.WorkDir == "" {
		d.WorkDir = m.WorkDir
	}
	if d.Port == 0 {
		d.Port = m.Port
	}
}

// Deploying reports whether the attached session is running a deployment.
func (w *Workspace) Deploying() bool {
	s := w.Session()
	return s != nil && s.Snapshot().Status == session.StatusRunning
}

// Submit starts a deployment of the current draft on the attached session.
// A second submission while one is running is refused, since logs of two
// pipelines would land in one step registry.
func (w *Workspace) Submit(ctx context.Context) error {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	s := w.Session()
	if s == nil {
		return ErrNoSession
	}
	if s.Snapshot().Status == session.StatusRunning {
		return ErrDeploymentInFlight
	}
	if w.Draft().DeploymentTarget == "" {
		return ErrNotDeployable
	}
	if _, err := w.EnsureRecord(ctx); err != nil {
		return err
	}
	if err := w.reconciler.Flush(ctx); err != nil {
		w.logger.Warn("failed to flush draft before submit", "error", err)
	}
	return s.Submit(ctx, w.Draft(), w.creds)
}

// SubscribeLogs asks the attached session to stream live logs for service.
func (w *Workspace) SubscribeLogs(ctx context.Context, service string) error {
	s := w.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.SubscribeLogs(ctx, service)
}

// HandleCompletion is the session completion hook. A successful deployment
// writes its outcome to the record and to the draft; a failed one leaves
// both untouched. The transcript is archived either way.
func (w *Workspace) HandleCompletion(c session.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	id := ""
	if c.Config != nil {
		id = c.Config.ID
	}

	if patch := deployment.CompletionPatch(c.Completion); patch != nil && id != "" {
		if err := w.store.MergePatch(ctx, id, patch); err != nil {
			w.logger.Error("failed to record deployment outcome", "record_id", id, "error", err)
		}
	}

	if c.Success {
		w.mu.Lock()
		applied := w.draft.ID == id && w.draft.ApplyCompletion(c.Completion)
		draft := w.draft.Clone()
		w.mu.Unlock()
		if applied {
			w.reconciler.OnDraftChange(draft)
		}
		w.logger.Info("deployment succeeded", "record_id", id, "url", c.DeployURL)
	}

	if w.archiver != nil && id != "" {
		key := archive.Key("", id, w.clock.Now())
		loc, err := w.archiver.Archive(ctx, key, Transcript(c))
		if err != nil {
			w.logger.Warn("failed to archive deployment logs", "record_id", id, "error", err)
			return
		}
		w.mu.Lock()
		w.archive = loc
		w.mu.Unlock()
		w.logger.Debug("archived deployment logs", "record_id", id, "location", loc)
	}
}

// LastArchive returns the location of the last archived transcript.
func (w *Workspace) LastArchive() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.archive
}

// Record returns the stored record id.
func (w *Workspace) Record(ctx context.Context, id string) (store.Document, error) {
	return w.store.Get(ctx, id)
}

// Close flushes a pending draft change.
func (w *Workspace) Close(ctx context.Context) error {
	return w.reconciler.Flush(ctx)
}

// Transcript renders the step logs of a finished deployment as plain text.
func Transcript(c session.Completion) []byte {
	var b strings.Builder
	outcome := "success"
	if !c.Success {
		outcome = "failed: " + c.Error
	}
	fmt.Fprintf(&b, "deployment %s\n", outcome)
	if c.DeployURL != "" {
		fmt.Fprintf(&b, "url: %s\n", c.DeployURL)
	}
	for _, step := range c.Steps {
		fmt.Fprintf(&b, "\n== %s (%s) [%s]\n", step.Label, step.ID, step.Status)
		for _, line := range step.Logs {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
