package storage

import "database/sql"

// migrateV001 creates the initial clipstash schema: the entries table with
// its per-kind payload columns, the ignored_apps table, and indexes. Every
// statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL CHECK (kind IN ('text', 'image', 'files')),
			text_body   TEXT NOT NULL DEFAULT '',
			blob_file   TEXT NOT NULL DEFAULT '',
			file_paths  TEXT NOT NULL DEFAULT '[]',
			fingerprint TEXT NOT NULL,
			ts          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			source_app  TEXT NOT NULL DEFAULT 'Unknown',
			pinned      BOOLEAN NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ignored_apps (
			bundle_id    TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			added_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entries_ts          ON entries(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_fingerprint ON entries(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_pinned      ON entries(pinned)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
