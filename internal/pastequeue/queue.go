// Package pastequeue implements the opt-in sequential paste queue. While
// active, every capture is mirrored into an ordered, mutable list that is
// consumed front to back; items are never persisted and queue state dies
// with the process.
package pastequeue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/settings"
	"go.klb.dev/clipstash/internal/storage"
)

var (
	// ErrInactive is returned by paste operations while the queue is inactive.
	ErrInactive = errors.New("pastequeue: not active")
	// ErrExhausted is returned by PasteNext when no unpasted item remains.
	ErrExhausted = errors.New("pastequeue: no unpasted items")
)

// Item is one queued entry snapshot. The Entry is copied by value at
// append time: later mutations of the source entry do not propagate here.
type Item struct {
	ID     string
	Entry  storage.Entry
	Pasted bool
	Order  int // dense 0-based position, renumbered after every mutation
}

// Writer puts content onto the system clipboard. The watcher injects an
// implementation that also runs its self-write suppression.
type Writer func(content.Content) error

// Queue is the paste queue state machine: Inactive → Active → Inactive.
type Queue struct {
	cfg   settings.Provider
	write Writer

	mu     sync.Mutex
	active bool
	items  []Item

	subMu sync.RWMutex
	subs  []func()
}

// New returns an inactive queue. write may be nil until SetWriter is called.
func New(cfg settings.Provider, write Writer) *Queue {
	return &Queue{cfg: cfg, write: write}
}

// SetWriter replaces the clipboard writer.
func (q *Queue) SetWriter(w Writer) {
	q.mu.Lock()
	q.write = w
	q.mu.Unlock()
}

// Subscribe registers a callback fired after every queue change.
func (q *Queue) Subscribe(fn func()) {
	q.subMu.Lock()
	q.subs = append(q.subs, fn)
	q.subMu.Unlock()
}

func (q *Queue) notify() {
	q.subMu.RLock()
	subs := q.subs
	q.subMu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Active reports whether captures are currently being mirrored in.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Activate clears any prior queued items and starts mirroring captures.
// Activating an already-active queue restarts it empty.
func (q *Queue) Activate() {
	q.mu.Lock()
	q.active = true
	q.items = nil
	q.mu.Unlock()
	q.notify()
}

// Deactivate stops mirroring. Queued items are retained for display when
// the keep-pasted-visible setting is on, cleared otherwise; either way no
// further captures are appended.
func (q *Queue) Deactivate() {
	keep := q.cfg.KeepPastedItemsVisible()
	q.mu.Lock()
	q.active = false
	if !keep {
		q.items = nil
	}
	q.mu.Unlock()
	q.notify()
}

// Append adds a capture snapshot to the back of the queue. Appends while
// inactive are ignored; appends beyond the configured bound are silently
// dropped (never evict-and-replace).
func (q *Queue) Append(e storage.Entry) {
	bound := q.cfg.MaxQueueSize()
	q.mu.Lock()
	if !q.active || len(q.items) >= bound {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, Item{
		ID:    uuid.NewString(),
		Entry: e,
		Order: len(q.items),
	})
	q.mu.Unlock()
	q.notify()
}

// Items returns a snapshot of the queue in order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// renumberLocked restores dense 0-based Order values after any mutation.
func (q *Queue) renumberLocked() {
	for i := range q.items {
		q.items[i].Order = i
	}
}

// firstUnpastedLocked returns the index of the lowest-order unpasted item,
// or -1.
func (q *Queue) firstUnpastedLocked() int {
	for i := range q.items {
		if !q.items[i].Pasted {
			return i
		}
	}
	return -1
}

// PasteNext pastes the first unpasted item in order: marks it pasted,
// writes its content to the system clipboard and returns a copy. When the
// queue is exhausted and auto-clear-after-complete is configured, the
// queue deactivates itself.
func (q *Queue) PasteNext() (*Item, error) {
	q.mu.Lock()
	if !q.active {
		q.mu.Unlock()
		return nil, ErrInactive
	}
	i := q.firstUnpastedLocked()
	if i < 0 {
		q.mu.Unlock()
		if q.cfg.AutoClearAfterComplete() {
			q.Deactivate()
		}
		return nil, ErrExhausted
	}
	item, err := q.pasteLocked(i)
	done := err == nil && q.firstUnpastedLocked() < 0
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if done && q.cfg.AutoClearAfterComplete() {
		q.Deactivate()
	}
	q.notify()
	return item, nil
}

// PasteAt pastes the item at index out of order. The cursor semantics of
// PasteNext are unaffected: it always resumes at the first unpasted item.
func (q *Queue) PasteAt(index int) (*Item, error) {
	q.mu.Lock()
	if !q.active {
		q.mu.Unlock()
		return nil, ErrInactive
	}
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return nil, fmt.Errorf("pastequeue: index %d out of range", index)
	}
	item, err := q.pasteLocked(index)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	q.notify()
	return item, nil
}

// pasteLocked writes the item's content to the clipboard and marks it
// pasted. A failed clipboard write leaves the item unpasted so it can be
// retried. Must be called with q.mu held.
func (q *Queue) pasteLocked(i int) (*Item, error) {
	if q.write != nil {
		if err := q.write(q.items[i].Entry.Content); err != nil {
			return nil, fmt.Errorf("pastequeue: clipboard write: %w", err)
		}
	}
	q.items[i].Pasted = true
	item := q.items[i]
	return &item, nil
}

// Reorder moves the item at from to position to and renumbers densely.
func (q *Queue) Reorder(from, to int) error {
	q.mu.Lock()
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		q.mu.Unlock()
		return fmt.Errorf("pastequeue: reorder %d to %d out of range", from, to)
	}
	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	rest := append([]Item{item}, q.items[to:]...)
	q.items = append(q.items[:to], rest...)
	q.renumberLocked()
	q.mu.Unlock()
	q.notify()
	return nil
}

// FlipOrder reverses the relative order of only the currently-unpasted
// items. Already-pasted items keep their exact slots: this is a deliberate
// partial reversal, not a full-list reverse.
func (q *Queue) FlipOrder() {
	q.mu.Lock()
	var idx []int
	for i := range q.items {
		if !q.items[i].Pasted {
			idx = append(idx, i)
		}
	}
	for a, b := 0, len(idx)-1; a < b; a, b = a+1, b-1 {
		q.items[idx[a]], q.items[idx[b]] = q.items[idx[b]], q.items[idx[a]]
	}
	q.renumberLocked()
	q.mu.Unlock()
	q.notify()
}

// RemoveAt deletes the item at index and renumbers densely.
func (q *Queue) RemoveAt(index int) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return fmt.Errorf("pastequeue: index %d out of range", index)
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	q.renumberLocked()
	q.mu.Unlock()
	q.notify()
	return nil
}

// Clear removes every queued item without changing the active state.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	q.notify()
}

// Reset clears all pasted flags without removing items, so the queue can
// be consumed again from the start.
func (q *Queue) Reset() {
	q.mu.Lock()
	for i := range q.items {
		q.items[i].Pasted = false
	}
	q.mu.Unlock()
	q.notify()
}
