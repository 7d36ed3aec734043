package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Blobs is the image side-store: one file per image entry, named after the
// entry id. It lives outside SQLite so large payloads never bloat the
// database file. Only the Store mutates it.
type Blobs struct {
	dir string
}

// NewBlobs ensures dir exists and returns a Blobs rooted there.
func NewBlobs(dir string) (*Blobs, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Blobs{dir: dir}, nil
}

// filename derives the deterministic blob filename for an entry id.
func (b *Blobs) filename(id string) string {
	return id + ".png"
}

func (b *Blobs) path(id string) string {
	return filepath.Join(b.dir, b.filename(id))
}

// Write stores data under the entry's blob file, replacing any previous
// contents. The write goes through a temp file + rename so a crash cannot
// leave a half-written blob behind.
func (b *Blobs) Write(id string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(b.dir, ".blob-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, b.path(id)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename blob: %w", err)
	}
	return b.filename(id), nil
}

// Read returns the blob bytes for an entry id.
func (b *Blobs) Read(id string) ([]byte, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

// Remove deletes the blob for an entry id. Missing blobs are not an error.
func (b *Blobs) Remove(id string) error {
	err := os.Remove(b.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", id, err)
	}
	return nil
}

// RemoveAll deletes every blob file in the directory, leaving the
// directory itself (and any unrelated files) in place.
func (b *Blobs) RemoveAll() error {
	names, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("list blob dir: %w", err)
	}
	for _, de := range names {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".png") {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, de.Name())); err != nil {
			return fmt.Errorf("remove blob %s: %w", de.Name(), err)
		}
	}
	return nil
}
