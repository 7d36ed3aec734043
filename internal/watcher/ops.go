package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipstash/internal/pastequeue"
	"go.klb.dev/clipstash/internal/storage"
)

// UI-facing operations. Each is serialized onto the run goroutine so it
// can never interleave with a poll tick or another operation.

// CopyToClipboard restores an entry to the system clipboard ("copy again").
// The entry keeps its id but gets a fresh timestamp and moves to the front
// of the history; the internal write is suppressed from recapture.
func (m *Manager) CopyToClipboard(id string) error {
	return m.do(func(ctx context.Context) error {
		e, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := m.writeClipboard(e.Content); err != nil {
			return fmt.Errorf("restore to clipboard: %w", err)
		}
		now := time.Now()
		if err := m.store.Touch(ctx, id, now); err != nil {
			return err
		}
		e.Timestamp = now
		m.model.MoveToFront(*e)
		return nil
	})
}

// TogglePinned flips the retention-exemption flag on an entry.
func (m *Manager) TogglePinned(id string) error {
	return m.do(func(ctx context.Context) error {
		e, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		e.Pinned = !e.Pinned
		if err := m.store.SetPinned(ctx, id, e.Pinned); err != nil {
			return err
		}
		m.model.Update(*e)
		return nil
	})
}

// Delete removes an entry from the store and the history view.
func (m *Manager) Delete(id string) error {
	return m.do(func(ctx context.Context) error {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
		m.model.Remove(id)
		return nil
	})
}

// DeleteAll clears the whole history.
func (m *Manager) DeleteAll() error {
	return m.do(func(ctx context.Context) error {
		if err := m.store.DeleteAll(ctx); err != nil {
			return err
		}
		m.model.Refresh(nil)
		return nil
	})
}

// AssignGroup sets (or clears, with nil) an entry's group.
func (m *Manager) AssignGroup(id string, groupID *string) error {
	return m.do(func(ctx context.Context) error {
		e, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := m.store.SetGroup(ctx, id, groupID); err != nil {
			return err
		}
		e.GroupID = groupID
		m.model.Update(*e)
		return nil
	})
}

// CreateGroup creates a new group placed after all existing ones.
func (m *Manager) CreateGroup(name string) (*storage.Group, error) {
	var created *storage.Group
	err := m.do(func(ctx context.Context) error {
		existing, err := m.store.ListGroups(ctx)
		if err != nil {
			return err
		}
		g := &storage.Group{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now(),
			SortOrder: len(existing),
		}
		if err := m.store.CreateGroup(ctx, g); err != nil {
			return err
		}
		created = g
		return nil
	})
	return created, err
}

// RenameGroup updates a group's display name.
func (m *Manager) RenameGroup(id, name string) error {
	return m.do(func(ctx context.Context) error {
		return m.store.RenameGroup(ctx, id, name)
	})
}

// DeleteGroup removes a group; member entries are detached, never deleted.
func (m *Manager) DeleteGroup(id string) error {
	return m.do(func(ctx context.Context) error {
		if err := m.store.DeleteGroup(ctx, id); err != nil {
			return err
		}
		entries, err := m.store.ListEntries(ctx)
		if err != nil {
			return err
		}
		m.model.Refresh(entries)
		return nil
	})
}

// Groups lists all groups in display order.
func (m *Manager) Groups() ([]storage.Group, error) {
	var groups []storage.Group
	err := m.do(func(ctx context.Context) error {
		var err error
		groups, err = m.store.ListGroups(ctx)
		return err
	})
	return groups, err
}

// SetQueueMode toggles paste-queue mode. Activation clears any previous
// queue contents; deactivation stops mirroring captures. The queue's own
// active flag is consulted directly, so it can never drift from the mode
// the manager reports (the queue may also deactivate itself after
// auto-clear).
func (m *Manager) SetQueueMode(active bool) error {
	return m.do(func(context.Context) error {
		if active == m.queue.Active() {
			return nil
		}
		if active {
			m.queue.Activate()
		} else {
			m.queue.Deactivate()
		}
		return nil
	})
}

// QueueModeActive reports whether captures are being mirrored to the queue.
func (m *Manager) QueueModeActive() bool {
	return m.queue.Active()
}

// PasteNext pastes the next unpasted queue item to the system clipboard.
func (m *Manager) PasteNext() (*pastequeue.Item, error) {
	var item *pastequeue.Item
	err := m.do(func(context.Context) error {
		var err error
		item, err = m.queue.PasteNext()
		return err
	})
	return item, err
}

// PasteAt pastes the queue item at index out of order.
func (m *Manager) PasteAt(index int) (*pastequeue.Item, error) {
	var item *pastequeue.Item
	err := m.do(func(context.Context) error {
		var err error
		item, err = m.queue.PasteAt(index)
		return err
	})
	return item, err
}

// ReorderQueue moves a queue item between positions.
func (m *Manager) ReorderQueue(from, to int) error {
	return m.do(func(context.Context) error { return m.queue.Reorder(from, to) })
}

// FlipQueueOrder reverses the unpasted portion of the queue in place.
func (m *Manager) FlipQueueOrder() error {
	return m.do(func(context.Context) error {
		m.queue.FlipOrder()
		return nil
	})
}

// RemoveQueueItem deletes one queue item.
func (m *Manager) RemoveQueueItem(index int) error {
	return m.do(func(context.Context) error { return m.queue.RemoveAt(index) })
}

// ClearQueue removes all queue items.
func (m *Manager) ClearQueue() error {
	return m.do(func(context.Context) error {
		m.queue.Clear()
		return nil
	})
}

// ResetQueue clears pasted flags so the queue can be consumed again.
func (m *Manager) ResetQueue() error {
	return m.do(func(context.Context) error {
		m.queue.Reset()
		return nil
	})
}

// SetPaused toggles monitoring without stopping the poll loop; while
// paused, change counters are still observed but nothing is captured.
func (m *Manager) SetPaused(paused bool) {
	m.guard.SetPaused(paused)
}

// IgnoreApp adds a source application to the never-capture list.
func (m *Manager) IgnoreApp(bundleID, displayName string) error {
	return m.do(func(ctx context.Context) error {
		return m.guard.AddIgnoredApp(ctx, storage.IgnoredApp{
			BundleID:    bundleID,
			DisplayName: displayName,
		})
	})
}

// UnignoreApp removes a source application from the never-capture list.
func (m *Manager) UnignoreApp(bundleID string) error {
	return m.do(func(ctx context.Context) error {
		return m.guard.RemoveIgnoredApp(ctx, bundleID)
	})
}
