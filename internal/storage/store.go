// Package storage implements the durable clipboard history store: a SQLite
// database for entry, group and ignored-app rows, plus a file-per-image blob
// side-store keyed by entry id. All mutation happens on the watcher's single
// logical thread, so the store itself carries no locking.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go.klb.dev/clipstash/internal/content"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Store defines the clipstash data operations.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	FindByFingerprint(ctx context.Context, fp string) (*Entry, error)
	ListEntries(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	Touch(ctx context.Context, id string, ts time.Time) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	SetGroup(ctx context.Context, id string, groupID *string) error

	CreateGroup(ctx context.Context, g *Group) error
	RenameGroup(ctx context.Context, id, name string) error
	SetGroupSortOrder(ctx context.Context, id string, order int) error
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context) ([]Group, error)

	AddIgnoredApp(ctx context.Context, app IgnoredApp) error
	RemoveIgnoredApp(ctx context.Context, bundleID string) error
	ListIgnoredApps(ctx context.Context) ([]IgnoredApp, error)

	Close() error
}

// SQLiteStore implements Store backed by a SQLite database and a blob
// directory for image payloads.
type SQLiteStore struct {
	db    *sql.DB
	blobs *Blobs

	insertEntry *sql.Stmt
	getEntry    *sql.Stmt
	getByFinger *sql.Stmt
	deleteEntry *sql.Stmt
	touchEntry  *sql.Stmt
	setPinned   *sql.Stmt
	setGroup    *sql.Stmt
}

// Open opens (creating if necessary) the database at dbPath, runs all
// pending migrations, and returns a ready Store using blobDir as the image
// side-store. A migration failure is returned as-is and must be treated as
// fatal by the caller: the store never operates against an unknown schema.
func Open(dbPath, blobDir string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	blobs, err := NewBlobs(blobDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	s, err := NewSQLiteStore(db, blobs)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore creates a store from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB, blobs *Blobs) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, blobs: blobs}
	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEntry, err = s.db.Prepare(`
		INSERT OR REPLACE INTO entries
			(id, kind, text_body, blob_file, file_paths, fingerprint, ts, source_app, pinned, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	const entryCols = `id, kind, text_body, blob_file, file_paths, fingerprint, ts, source_app, pinned, group_id`

	s.getEntry, err = s.db.Prepare(`SELECT ` + entryCols + ` FROM entries WHERE id = ?`)
	if err != nil {
		return err
	}

	s.getByFinger, err = s.db.Prepare(`
		SELECT ` + entryCols + ` FROM entries WHERE fingerprint = ? ORDER BY ts DESC LIMIT 1
	`)
	if err != nil {
		return err
	}

	s.deleteEntry, err = s.db.Prepare(`DELETE FROM entries WHERE id = ?`)
	if err != nil {
		return err
	}

	s.touchEntry, err = s.db.Prepare(`UPDATE entries SET ts = ? WHERE id = ?`)
	if err != nil {
		return err
	}

	s.setPinned, err = s.db.Prepare(`UPDATE entries SET pinned = ? WHERE id = ?`)
	if err != nil {
		return err
	}

	s.setGroup, err = s.db.Prepare(`UPDATE entries SET group_id = ? WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// parseTimestamp tries the common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Insert upserts an entry by id. Image payloads are written to the blob
// side-store first; a blob write failure is logged and degrades the entry
// to in-memory-only image data for this session (blob_file stays empty) —
// the row write is the hard failure, never the blob.
func (s *SQLiteStore) Insert(ctx context.Context, e *Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.SourceApp == "" {
		e.SourceApp = "Unknown"
	}

	var (
		textBody  string
		blobFile  string
		filePaths = "[]"
	)
	switch e.Content.Kind {
	case content.KindText:
		textBody = e.Content.Text
	case content.KindImage:
		name, err := s.blobs.Write(e.ID, e.Content.Image)
		if err != nil {
			slog.Warn("image blob write failed, keeping image in memory only",
				"entry", e.ID, "err", err)
		} else {
			blobFile = name
		}
	case content.KindFiles:
		raw, err := json.Marshal(e.Content.Files)
		if err != nil {
			return fmt.Errorf("encode file paths: %w", err)
		}
		filePaths = string(raw)
	default:
		return fmt.Errorf("unknown content kind %q", e.Content.Kind)
	}

	_, err := s.insertEntry.ExecContext(ctx,
		e.ID, string(e.Content.Kind), textBody, blobFile, filePaths,
		e.Fingerprint(), e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.SourceApp, e.Pinned, e.GroupID,
	)
	if err != nil {
		// Row failed: don't leave an orphaned blob behind.
		if blobFile != "" {
			_ = s.blobs.Remove(e.ID)
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// scanEntry scans one entry row and rehydrates its content payload,
// including reading image bytes back from the blob store.
func (s *SQLiteStore) scanEntry(scan func(dest ...any) error) (*Entry, error) {
	var (
		e         Entry
		kind      string
		textBody  string
		blobFile  string
		filePaths string
		tsStr     string
		groupID   sql.NullString
	)
	err := scan(&e.ID, &kind, &textBody, &blobFile, &filePaths,
		new(string), &tsStr, &e.SourceApp, &e.Pinned, &groupID)
	if err != nil {
		return nil, err
	}

	e.Timestamp, _ = parseTimestamp(tsStr)
	if groupID.Valid {
		gid := groupID.String
		e.GroupID = &gid
	}

	switch content.Kind(kind) {
	case content.KindText:
		e.Content = content.Text(textBody)
	case content.KindImage:
		var img []byte
		if blobFile != "" {
			var rerr error
			img, rerr = s.blobs.Read(e.ID)
			if rerr != nil {
				slog.Warn("image blob unreadable", "entry", e.ID, "err", rerr)
			}
		}
		e.Content = content.Image(img)
	case content.KindFiles:
		var paths []string
		if err := json.Unmarshal([]byte(filePaths), &paths); err != nil {
			return nil, fmt.Errorf("decode file paths for %s: %w", e.ID, err)
		}
		e.Content = content.Files(paths)
	default:
		return nil, fmt.Errorf("unknown content kind %q for %s", kind, e.ID)
	}

	return &e, nil
}

// Get retrieves a single entry by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.getEntry.QueryRowContext(ctx, id)
	e, err := s.scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// FindByFingerprint returns the live entry with the given content
// fingerprint, or ErrNotFound. This is the deduplication lookup: the
// no-duplicates invariant means at most one row can match.
func (s *SQLiteStore) FindByFingerprint(ctx context.Context, fp string) (*Entry, error) {
	row := s.getByFinger.QueryRowContext(ctx, fp)
	e, err := s.scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return e, nil
}

// ListEntries returns all entries ordered newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, text_body, blob_file, file_paths, fingerprint, ts, source_app, pinned, group_id
		FROM entries ORDER BY ts DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := s.scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Delete removes an entry row and its blob, if any.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.deleteEntry.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.blobs.Remove(id); err != nil {
		slog.Warn("blob cleanup failed", "entry", id, "err", err)
	}
	return nil
}

// DeleteAll clears every entry row and every blob.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("delete all entries: %w", err)
	}
	if err := s.blobs.RemoveAll(); err != nil {
		slog.Warn("blob cleanup failed", "err", err)
	}
	return nil
}

// DeleteOlderThan evicts unpinned entries with timestamps before cutoff,
// removing blobs of evicted image entries. It returns the ids of the
// evicted rows so in-memory views can prune without a full reload.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind FROM entries WHERE ts < ? AND pinned = 0", cutoffStr,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}
	defer rows.Close()

	var ids, imageIDs []string
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("scan expired: %w", err)
		}
		ids = append(ids, id)
		if content.Kind(kind) == content.KindImage {
			imageIDs = append(imageIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE ts < ? AND pinned = 0", cutoffStr,
	); err != nil {
		return nil, fmt.Errorf("delete expired: %w", err)
	}

	// Blobs go only after the rows are gone: a failed DELETE must not
	// strand surviving image rows without their bytes.
	for _, id := range imageIDs {
		if err := s.blobs.Remove(id); err != nil {
			slog.Warn("blob cleanup failed", "entry", id, "err", err)
		}
	}
	return ids, nil
}

// Touch updates only the entry's timestamp, used by "copy again".
func (s *SQLiteStore) Touch(ctx context.Context, id string, ts time.Time) error {
	return s.execTargeted(ctx, s.touchEntry, ts.UTC().Format(time.RFC3339Nano), id)
}

// SetPinned toggles the retention-exemption flag.
func (s *SQLiteStore) SetPinned(ctx context.Context, id string, pinned bool) error {
	return s.execTargeted(ctx, s.setPinned, pinned, id)
}

// SetGroup assigns or clears (nil) the entry's group.
func (s *SQLiteStore) SetGroup(ctx context.Context, id string, groupID *string) error {
	return s.execTargeted(ctx, s.setGroup, groupID, id)
}

func (s *SQLiteStore) execTargeted(ctx context.Context, stmt *sql.Stmt, args ...any) error {
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGroup inserts a new group row.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g *Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_at, sort_order) VALUES (?, ?, ?, ?)",
		g.ID, g.Name, g.CreatedAt.UTC().Format(time.RFC3339Nano), g.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// RenameGroup updates a group's display name.
func (s *SQLiteStore) RenameGroup(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE groups SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGroupSortOrder updates a group's position in group listings.
func (s *SQLiteStore) SetGroupSortOrder(ctx context.Context, id string, order int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE groups SET sort_order = ? WHERE id = ?", order, id)
	if err != nil {
		return fmt.Errorf("set group sort order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group and detaches its member entries. Entries are
// never deleted with their group.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"UPDATE entries SET group_id = NULL WHERE group_id = ?", id,
	); err != nil {
		return fmt.Errorf("detach group members: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ListGroups returns all groups ordered by sort_order, then creation time.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, sort_order FROM groups ORDER BY sort_order, created_at",
	)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		var g Group
		var tsStr string
		if err := rows.Scan(&g.ID, &g.Name, &tsStr, &g.SortOrder); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.CreatedAt, _ = parseTimestamp(tsStr)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddIgnoredApp records a bundle id whose copies should never be captured.
// Re-adding an existing bundle id updates its display name.
func (s *SQLiteStore) AddIgnoredApp(ctx context.Context, app IgnoredApp) error {
	if app.AddedAt.IsZero() {
		app.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ignored_apps (bundle_id, display_name, added_at) VALUES (?, ?, ?)
		ON CONFLICT(bundle_id) DO UPDATE SET display_name = excluded.display_name
	`, app.BundleID, app.DisplayName, app.AddedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add ignored app: %w", err)
	}
	return nil
}

// RemoveIgnoredApp deletes an ignore record. Removing an absent record is a no-op.
func (s *SQLiteStore) RemoveIgnoredApp(ctx context.Context, bundleID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM ignored_apps WHERE bundle_id = ?", bundleID,
	); err != nil {
		return fmt.Errorf("remove ignored app: %w", err)
	}
	return nil
}

// ListIgnoredApps returns all ignore records.
func (s *SQLiteStore) ListIgnoredApps(ctx context.Context) ([]IgnoredApp, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT bundle_id, display_name, added_at FROM ignored_apps ORDER BY added_at",
	)
	if err != nil {
		return nil, fmt.Errorf("list ignored apps: %w", err)
	}
	defer rows.Close()

	apps := []IgnoredApp{}
	for rows.Next() {
		var a IgnoredApp
		var tsStr string
		if err := rows.Scan(&a.BundleID, &a.DisplayName, &tsStr); err != nil {
			return nil, fmt.Errorf("scan ignored app: %w", err)
		}
		a.AddedAt, _ = parseTimestamp(tsStr)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// Close releases all prepared statements and the underlying database.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertEntry, s.getEntry, s.getByFinger,
		s.deleteEntry, s.touchEntry, s.setPinned, s.setGroup,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
