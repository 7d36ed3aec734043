//go:build !darwin && !linux

package clip

import (
	"crypto/sha256"

	"github.com/atotto/clipboard"

	"go.klb.dev/clipstash/internal/content"
)

// otherBackend is the text-only fallback for platforms without a dedicated
// implementation. It uses atotto/clipboard, which shells out to the native
// tooling, and synthesises a change counter from content hashes.
type otherBackend struct {
	counter  int64
	lastHash [32]byte
}

// New returns the portable text-only clipboard backend.
func New() Backend {
	return &otherBackend{}
}

func (b *otherBackend) Name() string { return "portable clipboard (text only)" }

func (b *otherBackend) ChangeCount() (int64, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return b.counter, nil // unreadable this cycle; counter unchanged
	}
	sum := sha256.Sum256([]byte(text))
	if sum != b.lastHash {
		b.lastHash = sum
		b.counter++
	}
	return b.counter, nil
}

func (b *otherBackend) Read() (*Snapshot, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, ErrUnavailable
	}
	if text == "" {
		return nil, nil
	}
	return &Snapshot{Text: text}, nil
}

func (b *otherBackend) Write(c content.Content) error {
	if c.Kind != content.KindText {
		return ErrUnavailable
	}
	return clipboard.WriteAll(c.Text)
}

func (b *otherBackend) FrontmostApp() (AppInfo, error) { return AppInfo{}, nil }

func (b *otherBackend) Close() {}
