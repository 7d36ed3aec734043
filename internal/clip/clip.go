// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_linux.go  — Linux via golang.design/x/clipboard, synthetic counter
//	clip_other.go  — text-only fallback via atotto/clipboard
//
// Unlike a push-style watcher, the Backend here is entirely pull-based: the
// watcher owns the poll loop and the observed change counter, and the
// backend only answers "what is the counter now" and "what is on the
// clipboard". On platforms without a native change counter the backend
// synthesises one by comparing content fingerprints between calls.
package clip

import (
	"errors"

	"go.klb.dev/clipstash/internal/content"
)

// ErrUnavailable is returned when the platform clipboard cannot be read
// this cycle. Callers treat it as "no content available" and move on.
var ErrUnavailable = errors.New("clip: clipboard unavailable")

// Snapshot is one raw clipboard reading. A single clipboard write can
// carry several representations at once; the watcher picks exactly one by
// priority (files > text > image).
type Snapshot struct {
	Files    []string // file paths, if the clipboard holds file references
	Text     string   // plain text, if present
	ImagePNG []byte   // PNG image bytes, if present
}

// AppInfo identifies the frontmost application at capture time.
type AppInfo struct {
	BundleID string
	Name     string
}

// Backend is the platform clipboard implementation.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ChangeCount returns the clipboard's monotonically increasing change
	// counter. The value is opaque: only inequality with a previous
	// reading is meaningful.
	ChangeCount() (int64, error)

	// Read returns the current clipboard contents. A nil Snapshot with a
	// nil error means the clipboard is empty.
	Read() (*Snapshot, error)

	// Write puts content onto the system clipboard, bumping the change
	// counter as a side effect.
	Write(c content.Content) error

	// FrontmostApp resolves the application currently owning the
	// foreground. Platforms without the concept return a zero AppInfo.
	FrontmostApp() (AppInfo, error)

	// Close releases any resources held by the backend.
	Close()
}
