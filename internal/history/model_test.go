package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/content"
	"go.klb.dev/clipstash/internal/storage"
)

func textEntry(id, text string, age time.Duration) storage.Entry {
	return storage.Entry{
		ID:        id,
		Content:   content.Text(text),
		Timestamp: time.Now().Add(-age),
		SourceApp: "Test",
	}
}

func TestRefresh_SortsNewestFirst(t *testing.T) {
	m := New()
	m.Refresh([]storage.Entry{
		textEntry("old", "old", 2*time.Hour),
		textEntry("new", "new", 0),
		textEntry("mid", "mid", time.Hour),
	})

	got := m.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "old", got[2].ID)
}

func TestInsertFront(t *testing.T) {
	m := New()
	m.InsertFront(textEntry("a", "a", 0))
	m.InsertFront(textEntry("b", "b", 0))

	got := m.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
}

func TestMoveToFront_PreservesOthers(t *testing.T) {
	m := New()
	m.Refresh([]storage.Entry{
		textEntry("c", "c", 0),
		textEntry("b", "b", time.Minute),
		textEntry("a", "a", 2*time.Minute),
	})

	moved := textEntry("a", "a", 0)
	m.MoveToFront(moved)

	got := m.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRemoveMany(t *testing.T) {
	m := New()
	m.Refresh([]storage.Entry{
		textEntry("a", "a", 0),
		textEntry("b", "b", 0),
		textEntry("c", "c", 0),
	})
	m.RemoveMany([]string{"a", "c"})

	got := m.Entries()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestUpdate_KeepsPosition(t *testing.T) {
	m := New()
	m.Refresh([]storage.Entry{
		textEntry("b", "b", 0),
		textEntry("a", "a", time.Minute),
	})

	pinned := textEntry("a", "a", time.Minute)
	pinned.Pinned = true
	m.Update(pinned)

	got := m.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[1].ID)
	assert.True(t, got[1].Pinned)
}

func TestFiltered(t *testing.T) {
	m := New()
	gid := "g1"
	link := textEntry("l", "https://example.com/docs", 0)
	img := storage.Entry{ID: "i", Content: content.Image([]byte{1}), Timestamp: time.Now()}
	files := storage.Entry{ID: "f", Content: content.Files([]string{"/home/u/Report.pdf"}), Timestamp: time.Now()}
	hello := textEntry("h", "Hello World", time.Minute)
	hello.GroupID = &gid

	m.Refresh([]storage.Entry{link, img, files, hello})

	t.Run("empty search and all passes everything", func(t *testing.T) {
		assert.Len(t, m.Filtered("", content.CategoryAll), 4)
	})

	t.Run("case-insensitive substring on text", func(t *testing.T) {
		got := m.Filtered("hello w", content.CategoryAll)
		require.Len(t, got, 1)
		assert.Equal(t, "h", got[0].ID)
	})

	t.Run("image token matches image entries", func(t *testing.T) {
		got := m.Filtered("ima", content.CategoryAll)
		require.Len(t, got, 1)
		assert.Equal(t, "i", got[0].ID)
	})

	t.Run("file basename match", func(t *testing.T) {
		got := m.Filtered("report", content.CategoryAll)
		require.Len(t, got, 1)
		assert.Equal(t, "f", got[0].ID)
	})

	t.Run("category filter is exact", func(t *testing.T) {
		got := m.Filtered("", content.CategoryLink)
		require.Len(t, got, 1)
		assert.Equal(t, "l", got[0].ID)
	})

	t.Run("search and category compose with AND", func(t *testing.T) {
		assert.Empty(t, m.Filtered("hello", content.CategoryLink))
	})
}

func TestInGroupAndPinned(t *testing.T) {
	m := New()
	gid := "g1"
	a := textEntry("a", "a", 0)
	a.GroupID = &gid
	b := textEntry("b", "b", 0)
	b.Pinned = true
	m.Refresh([]storage.Entry{a, b})

	got := m.InGroup(gid)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got = m.Pinned()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSubscribe_FiresOnEveryMutation(t *testing.T) {
	m := New()
	var fired int
	m.Subscribe(func() { fired++ })

	m.InsertFront(textEntry("a", "a", 0))
	m.Remove("a")
	m.Refresh(nil)

	assert.Equal(t, 3, fired)
}

func TestFiltered_OrderIsStable(t *testing.T) {
	m := New()
	var entries []storage.Entry
	for i := 0; i < 5; i++ {
		entries = append(entries, textEntry(fmt.Sprintf("e%d", i), "needle", time.Duration(i)*time.Minute))
	}
	m.Refresh(entries)

	got := m.Filtered("needle", content.CategoryAll)
	require.Len(t, got, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("e%d", i), got[i].ID)
	}
}
