package export

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is bumped whenever the exported tables change shape.
const SchemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE entries (
		time_id            TEXT PRIMARY KEY,
		position           INTEGER NOT NULL,
		absolute_minutes   INTEGER NOT NULL,
		instant            TEXT NOT NULL,
		date_text          TEXT NOT NULL,
		time_text          TEXT NOT NULL,
		variant_count      INTEGER NOT NULL,
		loop_triggers      TEXT NOT NULL,
		condition_triggers TEXT NOT NULL
	)`,
	`CREATE TABLE variants (
		time_id     TEXT NOT NULL REFERENCES entries(time_id),
		variant     INTEGER NOT NULL,
		script      TEXT NOT NULL,
		plain_text  TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		PRIMARY KEY (time_id, variant)
	)`,
	`CREATE TABLE tokens (
		time_id TEXT NOT NULL,
		variant INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		kind    TEXT NOT NULL,
		label   TEXT NOT NULL,
		flag    TEXT,
		raw     TEXT NOT NULL,
		PRIMARY KEY (time_id, variant, ordinal)
	)`,
	`CREATE TABLE refs (
		kind         TEXT NOT NULL,
		from_id      TEXT NOT NULL,
		from_variant INTEGER NOT NULL,
		token        TEXT NOT NULL,
		to_id        TEXT NOT NULL,
		to_variant   INTEGER NOT NULL,
		unlock_label TEXT,
		resolvable   INTEGER NOT NULL
	)`,
	`CREATE TABLE findings (
		severity TEXT NOT NULL,
		kind     TEXT NOT NULL,
		time_id  TEXT,
		variant  INTEGER,
		message  TEXT NOT NULL
	)`,
	`CREATE INDEX idx_refs_to ON refs(to_id, to_variant)`,
	`CREATE INDEX idx_tokens_flag ON tokens(flag)`,
}

// CreateSchema creates all export tables.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// CreateFTSIndex builds a full-text index over variant text. FTS5 is not
// compiled into every SQLite build, so callers treat failure as non-fatal.
func CreateFTSIndex(db *sql.DB) error {
	if _, err := db.Exec(`CREATE VIRTUAL TABLE variants_fts USING fts5(time_id, variant, plain_text)`); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO variants_fts (time_id, variant, plain_text) SELECT time_id, variant, plain_text FROM variants`)
	return err
}

// InsertMetaValue stores one metadata pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// OptimizeDatabase compacts the file after the bulk inserts.
func OptimizeDatabase(db *sql.DB) error {
	if _, err := db.Exec(`ANALYZE`); err != nil {
		return err
	}
	_, err := db.Exec(`VACUUM`)
	return err
}
