// Package watcher implements the clipboard monitoring loop and the
// serialized operation queue that every other mutation flows through.
//
// A single goroutine owns all mutation of the store, the history model and
// the paste queue: the poll tick and every UI-facing operation are
// multiplexed onto it, so no two captures or edits can ever interleave.
// The change counter is observed before any processing, which bounds the
// system to at most one in-flight capture and guarantees that a concurrent
// external change simply produces a second cycle.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/pastequeue"
	"go.klb.dev/clipstash/internal/privacy"
	"go.klb.dev/clipstash/internal/retention"
	"go.klb.dev/clipstash/internal/settings"
	"go.klb.dev/clipstash/internal/storage"
)

// ErrStopped is returned by operations invoked after Stop.
var ErrStopped = errors.New("watcher: stopped")

type op struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Manager is the clipboard watcher and the single mutation entry point for
// UI surfaces. Construct with New, then Start.
type Manager struct {
	store   storage.Store
	model   *history.Model
	queue   *pastequeue.Queue
	backend clip.Backend
	guard   *privacy.Guard
	cfg     settings.Provider

	ops chan op

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Touched only on the run goroutine.
	lastChange   int64
	haveBaseline bool

	subMu sync.RWMutex
	subs  []func(storage.Entry)
}

// New wires a Manager. The paste queue's clipboard writer is bound here so
// queue pastes go through the manager's self-write suppression.
func New(store storage.Store, model *history.Model, queue *pastequeue.Queue,
	backend clip.Backend, guard *privacy.Guard, cfg settings.Provider) *Manager {
	m := &Manager{
		store:   store,
		model:   model,
		queue:   queue,
		backend: backend,
		guard:   guard,
		cfg:     cfg,
		ops:     make(chan op),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	queue.SetWriter(m.writeClipboard)
	return m
}

// SubscribeCaptures registers a callback fired on the run goroutine after
// every successful capture. Callbacks must not block.
func (m *Manager) SubscribeCaptures(fn func(storage.Entry)) {
	m.subMu.Lock()
	m.subs = append(m.subs, fn)
	m.subMu.Unlock()
}

func (m *Manager) notifyCaptured(e storage.Entry) {
	m.subMu.RLock()
	subs := m.subs
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Start loads the history projection from the store, prunes entries that
// aged out while the process was down, records the current change counter
// as already observed (pre-existing clipboard content is not captured),
// and begins polling. Starting an already-running Manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	entries, err := m.store.ListEntries(ctx)
	if err != nil {
		return err
	}
	m.model.Refresh(entries)
	m.prune(ctx)

	if cc, err := m.backend.ChangeCount(); err == nil {
		m.lastChange = cc
		m.haveBaseline = true
	}

	go m.run(ctx)
	slog.Info("clipboard watcher started",
		"backend", m.backend.Name(),
		"entries", len(entries),
	)
	return nil
}

// Stop halts polling and rejects further operations. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	wasStarted := m.started
	m.mu.Unlock()

	close(m.stopCh)
	if wasStarted {
		<-m.doneCh
	}
	slog.Info("clipboard watcher stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.doneCh)

	timer := time.NewTimer(m.cfg.PollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case o := <-m.ops:
			o.reply <- o.fn(ctx)
		case <-timer.C:
			m.tick(ctx)
			// Interval re-read each cycle so settings changes land
			// without a restart.
			timer.Reset(m.cfg.PollInterval())
		}
	}
}

// do serializes fn onto the run goroutine and waits for its result. The
// run goroutine can also exit on context cancellation without Stop ever
// being called, so doneCh is watched alongside stopCh to keep callers
// from blocking on a channel nobody receives from.
func (m *Manager) do(fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	select {
	case m.ops <- op{fn: fn, reply: reply}:
		return <-reply
	case <-m.stopCh:
		return ErrStopped
	case <-m.doneCh:
		return ErrStopped
	}
}

// tick is one poll cycle. The change counter is always observed first —
// before the pause check, the source filter and any classification — so a
// skipped cycle can never be re-processed as stale content later.
func (m *Manager) tick(ctx context.Context) {
	cc, err := m.backend.ChangeCount()
	if err != nil {
		slog.Debug("change counter unreadable", "err", err)
		return
	}
	if m.haveBaseline && cc == m.lastChange {
		return
	}
	m.lastChange = cc
	m.haveBaseline = true

	if m.guard.Paused() {
		return
	}

	source := "Unknown"
	app, err := m.backend.FrontmostApp()
	if err != nil {
		slog.Debug("frontmost app unresolvable", "err", err)
	} else if app.Name != "" {
		source = app.Name
	}
	if m.guard.IsAppIgnored(app.BundleID) {
		slog.Debug("capture skipped, source app ignored", "bundle", app.BundleID)
		return
	}

	snap, err := m.backend.Read()
	if err != nil {
		slog.Warn("clipboard read failed", "err", err)
		return
	}
	c, ok := classify(snap)
	if !ok {
		return
	}

	m.capture(ctx, c, source)
}

// classify picks exactly one typed payload from a raw snapshot by
// priority: file references, then plain text, then image data. Empty
// payloads are not capturable.
func classify(snap *clip.Snapshot) (content.Content, bool) {
	if snap == nil {
		return content.Content{}, false
	}
	if len(snap.Files) > 0 {
		return content.Files(snap.Files), true
	}
	if c := content.Text(snap.Text); !c.Empty() {
		return c, true
	}
	if len(snap.ImagePNG) > 0 {
		return content.Image(snap.ImagePNG), true
	}
	return content.Content{}, false
}

// capture runs the dedup-insert-prune algorithm for one classified payload.
// A recapture of identical content removes the old entry and inserts a
// fresh one (new id, new timestamp) at the front, carrying over the old
// entry's pinned flag and group membership.
func (m *Manager) capture(ctx context.Context, c content.Content, source string) {
	var (
		pinned  bool
		groupID *string
	)
	prev, err := m.store.FindByFingerprint(ctx, c.Fingerprint())
	switch {
	case err == nil:
		pinned = prev.Pinned
		groupID = prev.GroupID
		if err := m.store.Delete(ctx, prev.ID); err != nil {
			slog.Error("dedup delete failed", "entry", prev.ID, "err", err)
			return
		}
		m.model.Remove(prev.ID)
	case !errors.Is(err, storage.ErrNotFound):
		slog.Error("dedup lookup failed", "err", err)
		return
	}

	e := &storage.Entry{
		ID:        uuid.NewString(),
		Content:   c,
		Timestamp: time.Now(),
		SourceApp: source,
		Pinned:    pinned,
		GroupID:   groupID,
	}
	// Store first: the in-memory view is only updated once the durable
	// write has succeeded.
	if err := m.store.Insert(ctx, e); err != nil {
		slog.Error("capture insert failed", "err", err)
		return
	}
	m.model.InsertFront(*e)

	slog.Debug("captured",
		"category", e.Category(),
		"source", source,
		"preview", c.Preview(),
	)
	m.notifyCaptured(*e)

	// Append is a no-op while the queue is inactive; the queue's own
	// active flag is the single source of truth for queue mode.
	m.queue.Append(*e)

	m.prune(ctx)
}

// prune evicts entries older than the configured retention window. Runs
// after every capture and once at startup.
func (m *Manager) prune(ctx context.Context) {
	policy := retention.Policy{Days: m.cfg.RetentionDays()}
	if !policy.Enabled() {
		return
	}
	ids, err := m.store.DeleteOlderThan(ctx, policy.Cutoff(time.Now()))
	if err != nil {
		slog.Error("retention prune failed", "err", err)
		return
	}
	if len(ids) > 0 {
		m.model.RemoveMany(ids)
		slog.Info("retention pruned entries", "count", len(ids), "days", policy.Days)
	}
}

// writeClipboard performs an internal clipboard write and immediately
// re-observes the change counter so the next poll cycle does not
// reinterpret our own write as new external content.
func (m *Manager) writeClipboard(c content.Content) error {
	if err := m.backend.Write(c); err != nil {
		return err
	}
	if cc, err := m.backend.ChangeCount(); err == nil {
		m.lastChange = cc
		m.haveBaseline = true
	}
	return nil
}
