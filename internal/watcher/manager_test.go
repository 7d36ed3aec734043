package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/pastequeue"
	"go.klb.dev/clipstash/internal/privacy"
	"go.klb.dev/clipstash/internal/settings"
	"go.klb.dev/clipstash/internal/storage"
)

// fakeBackend is a scriptable clip.Backend. Tests mutate it only between
// serialized operations, so no locking is needed.
type fakeBackend struct {
	counter int64
	snap    *clip.Snapshot
	app     clip.AppInfo
	written []content.Content
	readErr error
}

func (f *fakeBackend) Name() string                { return "fake" }
func (f *fakeBackend) ChangeCount() (int64, error) { return f.counter, nil }

func (f *fakeBackend) Read() (*clip.Snapshot, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.snap, nil
}

func (f *fakeBackend) Write(c content.Content) error {
	f.written = append(f.written, c)
	f.counter++
	switch c.Kind {
	case content.KindText:
		f.snap = &clip.Snapshot{Text: c.Text}
	case content.KindImage:
		f.snap = &clip.Snapshot{ImagePNG: c.Image}
	case content.KindFiles:
		f.snap = &clip.Snapshot{Files: c.Files}
	}
	return nil
}

func (f *fakeBackend) FrontmostApp() (clip.AppInfo, error) { return f.app, nil }
func (f *fakeBackend) Close()                              {}

// setClipboard simulates an external clipboard write from the named app.
func (f *fakeBackend) setClipboard(snap *clip.Snapshot, app clip.AppInfo) {
	f.snap = snap
	f.app = app
	f.counter++
}

type harness struct {
	store   *storage.SQLiteStore
	model   *history.Model
	queue   *pastequeue.Queue
	backend *fakeBackend
	guard   *privacy.Guard
	mgr     *Manager
}

func newHarness(t *testing.T, cfg settings.Static) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "clipstash.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	guard, err := privacy.NewGuard(context.Background(), store)
	require.NoError(t, err)

	if cfg.Poll == 0 {
		cfg.Poll = time.Hour // ticks driven manually in tests
	}
	if cfg.QueueMax == 0 {
		cfg.QueueMax = 10
	}
	cfg.KeepPasted = true

	model := history.New()
	queue := pastequeue.New(cfg, nil)
	backend := &fakeBackend{}
	mgr := New(store, model, queue, backend, guard, cfg)

	return &harness{store: store, model: model, queue: queue, backend: backend, guard: guard, mgr: mgr}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.mgr.Start(context.Background()))
	t.Cleanup(h.mgr.Stop)
}

// pumpTick runs one poll cycle on the run goroutine, serialized with any
// other operation.
func (h *harness) pumpTick(t *testing.T) {
	t.Helper()
	err := h.mgr.do(func(ctx context.Context) error {
		h.mgr.tick(ctx)
		return nil
	})
	require.NoError(t, err)
}

func textSnap(s string) *clip.Snapshot { return &clip.Snapshot{Text: s} }

func notes() clip.AppInfo { return clip.AppInfo{BundleID: "com.apple.Notes", Name: "Notes"} }

func TestCapture_PlainText(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("hello"), notes())
	h.pumpTick(t)

	got := h.model.Filtered("", content.CategoryAll)
	require.Len(t, got, 1)
	assert.Equal(t, content.CategoryText, got[0].Category())
	assert.Equal(t, "Notes", got[0].SourceApp)
	assert.Equal(t, "hello", got[0].Content.Text)
}

func TestCapture_LinkCategory(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("https://example.com"), notes())
	h.pumpTick(t)

	got := h.model.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, content.CategoryLink, got[0].Category())
}

func TestCapture_ExtractionPriority(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	// A write carrying all three representations yields exactly one
	// entry, classified as a file list.
	h.backend.setClipboard(&clip.Snapshot{
		Files:    []string{"/tmp/a.txt"},
		Text:     "a.txt",
		ImagePNG: []byte{1, 2},
	}, notes())
	h.pumpTick(t)

	got := h.model.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, content.KindFiles, got[0].Content.Kind)
}

func TestCapture_EmptyPayloadsSkipped(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("   \n"), notes())
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())

	h.backend.setClipboard(nil, notes())
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())
}

func TestCapture_UnchangedCounterIsNoop(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("once"), notes())
	h.pumpTick(t)
	h.pumpTick(t)
	h.pumpTick(t)

	assert.Equal(t, 1, h.model.Len())
}

// No duplicates, and recapture moves the single entry to the front with a
// fresh timestamp.
func TestRecapture_DedupReorders(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("hello"), notes())
	h.pumpTick(t)
	first := h.model.Entries()[0]

	h.backend.setClipboard(textSnap("other"), notes())
	h.pumpTick(t)

	// Same content again: counter bumps, payload identical.
	h.backend.setClipboard(textSnap("hello"), notes())
	h.pumpTick(t)

	got := h.model.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Content.Text)
	assert.NotEqual(t, first.ID, got[0].ID, "recapture assigns a fresh id")
	assert.False(t, got[0].Timestamp.Before(first.Timestamp))

	// The store agrees: exactly one row with that content.
	found, err := h.store.FindByFingerprint(context.Background(), content.Text("hello").Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, got[0].ID, found.ID)
}

func TestRecapture_PreservesPinAndGroup(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("keep me"), notes())
	h.pumpTick(t)
	id := h.model.Entries()[0].ID
	require.NoError(t, h.mgr.TogglePinned(id))

	h.backend.setClipboard(textSnap("keep me"), notes())
	h.pumpTick(t)

	got := h.model.Entries()
	require.Len(t, got, 1)
	assert.True(t, got[0].Pinned, "pin state carries over to the replacement entry")
}

func TestPauseAndCounterObservation(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.mgr.SetPaused(true)
	h.backend.setClipboard(textSnap("secret"), notes())
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())

	// Unpause: the change counter was already observed during the paused
	// cycle, so the same change is not retroactively captured.
	h.mgr.SetPaused(false)
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())

	// Only a genuinely new change triggers capture.
	h.backend.setClipboard(textSnap("public"), notes())
	h.pumpTick(t)
	assert.Equal(t, 1, h.model.Len())
}

func TestIgnoredApp_SkippedButCounterObserved(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)
	require.NoError(t, h.mgr.IgnoreApp("com.example.vault", "Vault"))

	h.backend.setClipboard(textSnap("hunter2"), clip.AppInfo{BundleID: "com.example.vault", Name: "Vault"})
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())

	// Same counter from a non-ignored app changes nothing either: the
	// cycle was consumed.
	h.backend.app = notes()
	h.pumpTick(t)
	assert.Equal(t, 0, h.model.Len())

	require.NoError(t, h.mgr.UnignoreApp("com.example.vault"))
	h.backend.setClipboard(textSnap("hunter2"), clip.AppInfo{BundleID: "com.example.vault", Name: "Vault"})
	h.pumpTick(t)
	assert.Equal(t, 1, h.model.Len())
}

func TestSelfWriteSuppression(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("a"), notes())
	h.pumpTick(t)
	h.backend.setClipboard(textSnap("b"), notes())
	h.pumpTick(t)
	require.Equal(t, 2, h.model.Len())

	// Restoring "a" writes to the clipboard; the next tick must not
	// reinterpret that write as new external content.
	aID := h.model.Entries()[1].ID
	require.NoError(t, h.mgr.CopyToClipboard(aID))
	h.pumpTick(t)

	got := h.model.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, aID, got[0].ID, "restored entry moves to front, same id")
	assert.Equal(t, "a", got[0].Content.Text)
}

func TestStartStop_Idempotent(t *testing.T) {
	h := newHarness(t, settings.Static{})
	ctx := context.Background()

	require.NoError(t, h.mgr.Start(ctx))
	require.NoError(t, h.mgr.Start(ctx), "second start is a no-op")

	h.backend.setClipboard(textSnap("x"), notes())
	h.pumpTick(t)
	assert.Equal(t, 1, h.model.Len())

	h.mgr.Stop()
	h.mgr.Stop() // second stop is a no-op

	assert.ErrorIs(t, h.mgr.Delete("whatever"), ErrStopped)
}

func TestStartupPrune(t *testing.T) {
	h := newHarness(t, settings.Static{Retention: 1})
	ctx := context.Background()

	old := &storage.Entry{ID: "old", Content: content.Text("stale"), Timestamp: time.Now().AddDate(0, 0, -2)}
	pinned := &storage.Entry{ID: "pin", Content: content.Text("keep"), Timestamp: time.Now().AddDate(0, 0, -2), Pinned: true}
	require.NoError(t, h.store.Insert(ctx, old))
	require.NoError(t, h.store.Insert(ctx, pinned))

	h.start(t)

	got := h.model.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, "pin", got[0].ID)

	_, err := h.store.Get(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestQueueMode(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)
	require.NoError(t, h.mgr.SetQueueMode(true))

	for _, s := range []string{"A", "B", "C"} {
		h.backend.setClipboard(textSnap(s), notes())
		h.pumpTick(t)
	}
	require.Len(t, h.queue.Items(), 3)

	it, err := h.mgr.PasteNext()
	require.NoError(t, err)
	assert.Equal(t, "A", it.Entry.Content.Text)
	assert.Equal(t, "A", h.backend.written[len(h.backend.written)-1].Text)

	it, err = h.mgr.PasteNext()
	require.NoError(t, err)
	assert.Equal(t, "B", it.Entry.Content.Text)

	// Queue pastes are internal writes: no recapture on the next tick.
	h.pumpTick(t)
	assert.Equal(t, 3, h.model.Len())

	require.NoError(t, h.mgr.SetQueueMode(false))
	h.backend.setClipboard(textSnap("D"), notes())
	h.pumpTick(t)
	assert.Len(t, h.queue.Items(), 3, "no appends while inactive")
}

func TestQueueMode_ReactivateAfterAutoClear(t *testing.T) {
	h := newHarness(t, settings.Static{AutoClear: true})
	h.start(t)
	require.NoError(t, h.mgr.SetQueueMode(true))

	// Draining an empty queue deactivates it via auto-clear.
	_, err := h.mgr.PasteNext()
	require.ErrorIs(t, err, pastequeue.ErrExhausted)
	assert.False(t, h.mgr.QueueModeActive())

	// The manager must honor a reactivation after the queue turned
	// itself off, and captures must flow into the queue again.
	require.NoError(t, h.mgr.SetQueueMode(true))
	assert.True(t, h.mgr.QueueModeActive())

	h.backend.setClipboard(textSnap("A"), notes())
	h.pumpTick(t)
	assert.Len(t, h.queue.Items(), 1)
}

func TestQueueMode_AutoClearAfterLastPaste(t *testing.T) {
	h := newHarness(t, settings.Static{AutoClear: true})
	h.start(t)
	require.NoError(t, h.mgr.SetQueueMode(true))

	h.backend.setClipboard(textSnap("only"), notes())
	h.pumpTick(t)

	it, err := h.mgr.PasteNext()
	require.NoError(t, err)
	assert.Equal(t, "only", it.Entry.Content.Text)
	assert.False(t, h.mgr.QueueModeActive(), "queue completes and deactivates")

	require.NoError(t, h.mgr.SetQueueMode(true))
	h.backend.setClipboard(textSnap("again"), notes())
	h.pumpTick(t)
	assert.Len(t, h.queue.Items(), 1)
}

func TestOpsAfterContextCancel(t *testing.T) {
	h := newHarness(t, settings.Static{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.mgr.Start(ctx))
	t.Cleanup(h.mgr.Stop)

	// Cancelling the start context ends the run goroutine without Stop;
	// operations must fail fast instead of blocking forever.
	cancel()
	<-h.mgr.doneCh
	assert.ErrorIs(t, h.mgr.Delete("whatever"), ErrStopped)
}

func TestDeleteAndDeleteAll(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("one"), notes())
	h.pumpTick(t)
	h.backend.setClipboard(textSnap("two"), notes())
	h.pumpTick(t)

	id := h.model.Entries()[0].ID
	require.NoError(t, h.mgr.Delete(id))
	assert.Equal(t, 1, h.model.Len())

	require.NoError(t, h.mgr.DeleteAll())
	assert.Equal(t, 0, h.model.Len())
}

func TestGroupLifecycle(t *testing.T) {
	h := newHarness(t, settings.Static{})
	h.start(t)

	h.backend.setClipboard(textSnap("member"), notes())
	h.pumpTick(t)
	id := h.model.Entries()[0].ID

	g, err := h.mgr.CreateGroup("Snippets")
	require.NoError(t, err)
	require.NoError(t, h.mgr.AssignGroup(id, &g.ID))
	assert.Len(t, h.model.InGroup(g.ID), 1)

	// Deleting the group detaches the entry but keeps it.
	require.NoError(t, h.mgr.DeleteGroup(g.ID))
	assert.Empty(t, h.model.InGroup(g.ID))
	assert.Equal(t, 1, h.model.Len())
	assert.Nil(t, h.model.Entries()[0].GroupID)
}

func TestCaptureNotification(t *testing.T) {
	h := newHarness(t, settings.Static{})
	var seen []string
	h.mgr.SubscribeCaptures(func(e storage.Entry) { seen = append(seen, e.Content.Text) })
	h.start(t)

	h.backend.setClipboard(textSnap("ping"), notes())
	h.pumpTick(t)

	require.Len(t, seen, 1)
	assert.Equal(t, "ping", seen[0])
}
