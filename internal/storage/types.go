package storage

import (
	"time"

	"go.klb.dev/clipstash/internal/content"
)

// Entry is a single captured clipboard item.
type Entry struct {
	ID        string
	Content   content.Content
	Timestamp time.Time
	SourceApp string // frontmost app display name at capture; "Unknown" if unresolvable
	Pinned    bool
	GroupID   *string
}

// Category returns the derived display category of the entry's content.
func (e Entry) Category() content.Category { return e.Content.Category() }

// Fingerprint returns the dedup fingerprint of the entry's content.
func (e Entry) Fingerprint() string { return e.Content.Fingerprint() }

// Group is a user-created bucket that entries can be assigned to.
// Deleting a group detaches its members; it never deletes entries.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
	SortOrder int
}

// IgnoredApp is a source application whose copies are never captured.
type IgnoredApp struct {
	BundleID    string
	DisplayName string
	AddedAt     time.Time
}
