//go:build linux

package clip

import (
	"crypto/sha256"
	"log/slog"

	"golang.design/x/clipboard"

	"go.klb.dev/clipstash/internal/content"
)

// linuxBackend synthesises a change counter: X11/Wayland expose no native
// one, so ChangeCount hashes the current contents and bumps the counter
// whenever the hash differs from the previous call.
type linuxBackend struct {
	counter  int64
	lastHash [32]byte
}

// New returns the Linux clipboard backend, or a no-op backend if the
// display environment is unavailable (headless server without X11 or
// Wayland).
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return &headlessBackend{}
	}
	return &linuxBackend{}
}

func (b *linuxBackend) Name() string { return "Linux clipboard (synthetic counter)" }

func (b *linuxBackend) ChangeCount() (int64, error) {
	h := sha256.New()
	h.Write(clipboard.Read(clipboard.FmtText))
	h.Write([]byte{0})
	h.Write(clipboard.Read(clipboard.FmtImage))

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	if sum != b.lastHash {
		b.lastHash = sum
		b.counter++
	}
	return b.counter, nil
}

func (b *linuxBackend) Read() (*Snapshot, error) {
	snap := &Snapshot{}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		snap.Text = string(text)
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		snap.ImagePNG = img
	}
	if snap.Text == "" && len(snap.ImagePNG) == 0 {
		return nil, nil
	}
	return snap, nil
}

func (b *linuxBackend) Write(c content.Content) error {
	switch c.Kind {
	case content.KindText:
		clipboard.Write(clipboard.FmtText, []byte(c.Text))
	case content.KindImage:
		clipboard.Write(clipboard.FmtImage, c.Image)
	default:
		return ErrUnavailable
	}
	return nil
}

// FrontmostApp is not resolvable on Linux; captures record "Unknown".
func (b *linuxBackend) FrontmostApp() (AppInfo, error) { return AppInfo{}, nil }

func (b *linuxBackend) Close() {}

// headlessBackend is a no-op for environments without a display server.
// Its counter never moves, so the watcher never captures.
type headlessBackend struct{}

func (b *headlessBackend) Name() string                   { return "headless (no-op)" }
func (b *headlessBackend) ChangeCount() (int64, error)    { return 0, nil }
func (b *headlessBackend) Read() (*Snapshot, error)       { return nil, nil }
func (b *headlessBackend) Write(_ content.Content) error  { return ErrUnavailable }
func (b *headlessBackend) FrontmostApp() (AppInfo, error) { return AppInfo{}, nil }
func (b *headlessBackend) Close()                         {}
