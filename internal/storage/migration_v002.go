package storage

import "database/sql"

// migrateV002 adds user-defined groups: the groups table and a nullable
// group_id column on entries. The column add is guarded by a PRAGMA probe
// so re-running against a database that already has it cannot fail.
func migrateV002(tx *sql.Tx) error {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS groups (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		return err
	}

	has, err := columnExists(tx, "entries", "group_id")
	if err != nil {
		return err
	}
	if !has {
		if _, err := tx.Exec(`ALTER TABLE entries ADD COLUMN group_id TEXT REFERENCES groups(id)`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_group ON entries(group_id)`); err != nil {
		return err
	}
	return nil
}
