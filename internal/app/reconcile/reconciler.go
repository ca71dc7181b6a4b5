// Package reconcile keeps a persisted deployment record in step with the
// draft being edited, writing at most one merge patch per debounce window
// and only when the persistable projection changed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/pkg/clock"
	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// DefaultDebounce is the debounce window used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoRecord is returned by Reconcile when the draft has no record ID.
var ErrNoRecord = errors.New("reconcile: draft has no record id")

// Patcher applies merge patches to deployment records.
type Patcher interface {
	MergePatch(ctx context.Context, id string, patch map[string]any) error
}

// Options configure a Reconciler. Zero values select defaults.
type Options struct {
	Logger   *slog.Logger
	Clock    clock.Clock
	Debounce time.Duration
	// Timeout bounds each MergePatch call made from the timer.
	Timeout time.Duration
}

// Reconciler owns the last-emitted snapshot of a draft. It never owns the
// draft itself: every change hands it a copy.
type Reconciler struct {
	patcher  Patcher
	logger   *slog.Logger
	clock    clock.Clock
	debounce time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	timer    *clock.Timer
	gen      uint64
	pending  *deployment.Config
	snapshot string
	emitted  int
}

// New creates a Reconciler writing through p.
func New(p Patcher, opts Options) *Reconciler {
	r := &Reconciler{
		patcher:  p,
		logger:   opts.Logger,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
	}
	if r.logger == nil {
		r.logger = logger.Default()
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.debounce <= 0 {
		r.debounce = DefaultDebounce
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	return r
}

// OnDraftChange records the latest draft and restarts the debounce timer.
// Only one timer is ever pending, so a burst of changes collapses to the
// last draft.
func (r *Reconciler) OnDraftChange(draft *deployment.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = draft.Clone()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.debounce, func() { r.fire(gen) })
}

// fire runs when the timer of generation gen expires. A callback that lost
// the race with a newer change is a no-op.
func (r *Reconciler) fire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	draft := r.pending
	r.pending = nil
	r.timer = nil
	r.mu.Unlock()

	if draft == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.Reconcile(ctx, draft); err != nil && !errors.Is(err, ErrNoRecord) {
		r.logger.Error("failed to reconcile draft", "record_id", draft.ID, "error", err)
	}
}

// Reconcile compares draft against the last-emitted snapshot and, if it
// changed, writes the projection as a merge patch. The snapshot is updated
// before the write, so a failed write is not retried until the draft changes
// again. It returns true if a patch was emitted.
func (r *Reconciler) Reconcile(ctx context.Context, draft *deployment.Config) (bool, error) {
	if draft == nil || draft.ID == "" {
		return false, ErrNoRecord
	}

	r.mu.Lock()
	projection, serialized, changed, err := deployment.Changed(draft, r.snapshot)
	if err != nil {
		r.mu.Unlock()
		return false, err
	}
	if !changed {
		r.mu.Unlock()
		r.logger.Debug("draft unchanged, skipping patch", "record_id", draft.ID)
		return false, nil
	}
	r.snapshot = serialized
	r.emitted++
	r.mu.Unlock()

	r.logger.Debug("emitting draft patch", "record_id", draft.ID, "fields", len(projection))
	if err := r.patcher.MergePatch(ctx, draft.ID, projection); err != nil {
		return true, fmt.Errorf("failed to patch record %s: %w", draft.ID, err)
	}
	return true, nil
}

// Seed sets the snapshot to the projection of a draft that is already
// persisted, such as a freshly loaded record, so it is not written back.
func (r *Reconciler) Seed(draft *deployment.Config) error {
	_, serialized, _, err := deployment.Changed(draft, "")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = serialized
	r.mu.Unlock()
	return nil
}

// Flush reconciles a pending draft immediately instead of waiting for the
// timer.
func (r *Reconciler) Flush(ctx context.Context) error {
	r.mu.Lock()
	draft := r.pending
	r.pending = nil
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()

	if draft == nil {
		return nil
	}
	_, err := r.Reconcile(ctx, draft)
	if errors.Is(err, ErrNoRecord) {
		return nil
	}
	return err
}

// Stop cancels a pending timer without reconciling.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = nil
}

// Snapshot returns the last-emitted serialization.
func (r *Reconciler) Snapshot() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Emitted returns the number of patches emitted so far.
func (r *Reconciler) Emitted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted
}
