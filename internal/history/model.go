// Package history maintains the in-memory most-recent-first projection of
// the entry store that every UI surface reads. It is derivative state: the
// store is authoritative, and the model is kept consistent with it on every
// mutation. Subscribers are notified after each change without the model
// knowing who they are.
package history

import (
	"sort"
	"strings"
	"sync"

	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/storage"
)

// Model is the ordered in-memory view. Mutations arrive only from the
// watcher's single logical thread; the lock exists so UI surfaces can read
// snapshots without coordinating with that thread.
type Model struct {
	mu      sync.RWMutex
	entries []storage.Entry

	subMu sync.RWMutex
	subs  []func()
}

// New returns an empty model.
func New() *Model {
	return &Model{}
}

// Subscribe registers a callback fired after every mutation. Callbacks run
// on the mutating goroutine and must not block.
func (m *Model) Subscribe(fn func()) {
	m.subMu.Lock()
	m.subs = append(m.subs, fn)
	m.subMu.Unlock()
}

func (m *Model) notify() {
	m.subMu.RLock()
	subs := m.subs
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Refresh replaces the whole view from a store listing. This is the
// recovery path for external state drift; normal mutations use the
// incremental operations below.
func (m *Model) Refresh(entries []storage.Entry) {
	sorted := make([]storage.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	m.mu.Lock()
	m.entries = sorted
	m.mu.Unlock()
	m.notify()
}

// InsertFront places a freshly captured entry at position 0.
func (m *Model) InsertFront(e storage.Entry) {
	m.mu.Lock()
	m.entries = append([]storage.Entry{e}, m.entries...)
	m.mu.Unlock()
	m.notify()
}

// Remove drops the entry with the given id, if present.
func (m *Model) Remove(id string) {
	m.removeAll(map[string]struct{}{id: {}})
}

// RemoveMany drops all entries whose ids appear in ids. Used after a
// retention prune so the view stays consistent without a full reload.
func (m *Model) RemoveMany(ids []string) {
	if len(ids) == 0 {
		return
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	m.removeAll(set)
}

func (m *Model) removeAll(ids map[string]struct{}) {
	m.mu.Lock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if _, gone := ids[e.ID]; !gone {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.mu.Unlock()
	m.notify()
}

// Update replaces the stored copy of an entry in place, preserving its
// position. Pin toggles and group changes do not reorder the list.
func (m *Model) Update(e storage.Entry) {
	m.mu.Lock()
	for i := range m.entries {
		if m.entries[i].ID == e.ID {
			m.entries[i] = e
			break
		}
	}
	m.mu.Unlock()
	m.notify()
}

// MoveToFront relocates an existing entry to position 0 with the given
// refreshed copy ("copy again"). O(n) over the in-memory list, no store
// round-trip.
func (m *Model) MoveToFront(e storage.Entry) {
	m.mu.Lock()
	for i := range m.entries {
		if m.entries[i].ID == e.ID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append([]storage.Entry{e}, m.entries...)
	m.mu.Unlock()
	m.notify()
}

// Entries returns a snapshot of the full ordered list.
func (m *Model) Entries() []storage.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]storage.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of live entries.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Filtered returns entries matching both the search text and the category
// filter. Search is a case-insensitive substring match against text
// content, the literal token "image" for image entries, or any file's
// basename for file lists. CategoryAll passes every category.
func (m *Model) Filtered(search string, cat content.Category) []storage.Entry {
	q := strings.ToLower(strings.TrimSpace(search))

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []storage.Entry{}
	for _, e := range m.entries {
		if cat != content.CategoryAll && e.Category() != cat {
			continue
		}
		if q != "" && !matches(e.Content, q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matches(c content.Content, q string) bool {
	switch c.Kind {
	case content.KindText:
		return strings.Contains(strings.ToLower(c.Text), q)
	case content.KindImage:
		return strings.Contains("image", q)
	case content.KindFiles:
		for _, p := range c.Files {
			base := p
			if i := strings.LastIndexByte(p, '/'); i >= 0 {
				base = p[i+1:]
			}
			if strings.Contains(strings.ToLower(base), q) {
				return true
			}
		}
	}
	return false
}

// InGroup returns the entries assigned to the given group, in list order.
func (m *Model) InGroup(groupID string) []storage.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []storage.Entry{}
	for _, e := range m.entries {
		if e.GroupID != nil && *e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out
}

// Pinned returns the pinned entries, in list order.
func (m *Model) Pinned() []storage.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []storage.Entry{}
	for _, e := range m.entries {
		if e.Pinned {
			out = append(out, e)
		}
	}
	return out
}
