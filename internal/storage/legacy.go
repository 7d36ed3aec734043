package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipstash/internal/content"
)

// legacyRecord is one entry in the flat-file export written by pre-SQLite
// builds. Image bytes are base64 in the JSON ([]byte marshalling).
type legacyRecord struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Image     []byte    `json:"image,omitempty"`
	Files     []string  `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SourceApp string    `json:"source_app"`
	Pinned    bool      `json:"pinned"`
}

// ImportLegacy performs the one-time import of a legacy flat-file export.
// On success the legacy file is removed. A parse failure leaves the file
// untouched for manual recovery and returns the error; the caller logs it
// and continues startup. A missing file is a no-op.
func (s *SQLiteStore) ImportLegacy(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read legacy export: %w", err)
	}

	var records []legacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse legacy export: %w", err)
	}

	imported := 0
	for _, r := range records {
		var c content.Content
		switch content.Kind(r.Kind) {
		case content.KindText:
			c = content.Text(r.Text)
		case content.KindImage:
			c = content.Image(r.Image)
		case content.KindFiles:
			c = content.Files(r.Files)
		default:
			slog.Warn("legacy import: skipping record with unknown kind", "kind", r.Kind)
			continue
		}
		if c.Empty() {
			continue
		}

		// The no-duplicates invariant holds across the import too.
		if _, err := s.FindByFingerprint(ctx, c.Fingerprint()); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("legacy dedup lookup: %w", err)
		}

		e := &Entry{
			ID:        uuid.NewString(),
			Content:   c,
			Timestamp: r.Timestamp,
			SourceApp: r.SourceApp,
			Pinned:    r.Pinned,
		}
		if err := s.Insert(ctx, e); err != nil {
			return fmt.Errorf("legacy insert: %w", err)
		}
		imported++
	}

	if err := os.Remove(path); err != nil {
		slog.Warn("legacy export imported but could not be removed", "path", path, "err", err)
	}
	slog.Info("legacy export imported", "path", path, "records", imported)
	return nil
}
