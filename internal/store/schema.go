package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema version step. Steps run in order inside their own
// transaction and bump PRAGMA user_version on success.
type migration struct {
	version     int
	description string
	ddl         string
}

// schemaVersion is the version a freshly opened database ends up at.
const schemaVersion = 2

var migrations = []migration{
	{
		version:     1,
		description: "listings, media and users",
		ddl: `
CREATE TABLE IF NOT EXISTS listings (
    id            TEXT PRIMARY KEY NOT NULL,
    host_id       TEXT NOT NULL DEFAULT '',
    price         TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    property_type TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_listings_title         ON listings (title);
CREATE INDEX IF NOT EXISTS idx_listings_property_type ON listings (property_type);

CREATE TABLE IF NOT EXISTS media (
    id          TEXT PRIMARY KEY NOT NULL,
    listing_id  TEXT NOT NULL REFERENCES listings (id) ON DELETE CASCADE,
    url         TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_media_listing_id ON media (listing_id);

CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY NOT NULL,
    first_name    TEXT    NOT NULL DEFAULT '',
    about         TEXT    NOT NULL DEFAULT '',
    picture_url   TEXT    NOT NULL DEFAULT '',
    is_super_host INTEGER NOT NULL DEFAULT 0,
    member_since  TEXT    NOT NULL DEFAULT ''
);
`,
	},
	{
		version:     2,
		description: "favorite tracking",
		ddl: `
CREATE TABLE IF NOT EXISTS favorite (
    listing_id  TEXT PRIMARY KEY NOT NULL REFERENCES listings (id) ON DELETE CASCADE,
    is_favorite INTEGER NOT NULL DEFAULT 0
);
`,
	},
}

// userVersion reads PRAGMA user_version.
func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies every step above the current user_version up to target.
func migrate(ctx context.Context, db *sql.DB, target int) error {
	current, err := userVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording schema version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}
