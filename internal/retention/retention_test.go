package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/storage"
)

func entryAgedDays(days int, pinned bool) storage.Entry {
	return storage.Entry{
		ID:        "e1",
		Content:   content.Text("x"),
		Timestamp: time.Now().AddDate(0, 0, -days),
		Pinned:    pinned,
	}
}

func TestEvictable_WindowBoundaries(t *testing.T) {
	now := time.Now()
	p := Policy{Days: 7}

	// One day past the window: evictable.
	assert.True(t, p.Evictable(entryAgedDays(8, false), now))
	// One day inside the window: kept.
	assert.False(t, p.Evictable(entryAgedDays(6, false), now))
}

func TestEvictable_PinnedImmunity(t *testing.T) {
	now := time.Now()
	p := Policy{Days: 1}

	// A pinned entry is never evictable, no matter how old.
	assert.False(t, p.Evictable(entryAgedDays(10000, true), now))
	assert.True(t, p.Evictable(entryAgedDays(10000, false), now))
}

func TestEvictable_InfiniteRetention(t *testing.T) {
	now := time.Now()
	for _, days := range []int{0, -1} {
		p := Policy{Days: days}
		assert.False(t, p.Enabled())
		assert.False(t, p.Evictable(entryAgedDays(10000, false), now))
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	p := Policy{Days: 3}
	assert.Equal(t, time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), p.Cutoff(now))
}
