package listing

import "database/sql"

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
    id         TEXT PRIMARY KEY,
    creator_id TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'DRAFT'
               CHECK(status IN ('DRAFT','PUBLISHED','ARCHIVED','REMOVED')),
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listing_files (
    id          TEXT PRIMARY KEY,
    listing_id  TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    filename    TEXT NOT NULL,
    language    TEXT NOT NULL DEFAULT '',
    is_main     INTEGER NOT NULL DEFAULT 0,
    storage_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listing_files_listing ON listing_files(listing_id, position);
`

func runMigrations(db *sql.DB) error {
	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		// Fresh database.
		current = 0
	}

	if current >= schemaVersion {
		return nil
	}

	if current < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return err
		}
	}

	if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}
