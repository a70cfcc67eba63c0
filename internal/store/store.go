// Package store manages the SQLite database holding listings, media, users
// and favorites.
//
// Only this package may open or query the database. Reads are exposed as
// [flow.Flow] values that re-run whenever a write commits to a table they
// depend on; writes are transactional and report constraint violations as
// [*ConstraintError].
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// Store is the SQLite-backed local store. One Store is shared by every
// repository in the process.
type Store struct {
	db      *sqlx.DB
	tracker *tracker
}

// Snapshot is a normalized copy of the remote data, written atomically by
// [Store.SaveSnapshot].
type Snapshot struct {
	Users    []model.User
	Listings []model.Listing
	Media    []model.Media
}

// SnapshotResult summarizes what SaveSnapshot wrote.
type SnapshotResult struct {
	Users    int
	Listings int
	Media    int
	Pruned   int64
}

// Counts holds row counts per table.
type Counts struct {
	Listings  int `db:"listings"`
	Media     int `db:"media"`
	Users     int `db:"users"`
	Favorites int `db:"favorites"`
}

// DefaultDBPath returns the default path for the database:
// ~/.local/share/listingapp/listings.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "listingapp", "listings.db"), nil
}

// Open opens (or creates) the database at path, enables foreign keys and WAL
// mode, and migrates the schema to the latest version.
func Open(path string) (*Store, error) {
	return open(path, schemaVersion)
}

func open(path string, version int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db.DB, version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, tracker: newTracker()}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- writes ------------------------------------------------------------------

// write runs fn in a transaction and, after commit, wakes the live queries
// reading any of tables.
func (s *Store) write(ctx context.Context, op string, tables []string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: beginning transaction: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	s.tracker.notify(tables...)
	return nil
}

const upsertListingSQL = `
	INSERT INTO listings (id, host_id, price, description, title, property_type)
	VALUES (:id, :host_id, :price, :description, :title, :property_type)
	ON CONFLICT(id) DO UPDATE SET
	    host_id       = excluded.host_id,
	    price         = excluded.price,
	    description   = excluded.description,
	    title         = excluded.title,
	    property_type = excluded.property_type`

const upsertMediaSQL = `
	INSERT INTO media (id, listing_id, url, description)
	VALUES (:id, :listing_id, :url, :description)
	ON CONFLICT(id) DO UPDATE SET
	    listing_id  = excluded.listing_id,
	    url         = excluded.url,
	    description = excluded.description`

const upsertUserSQL = `
	INSERT INTO users (id, first_name, about, picture_url, is_super_host, member_since)
	VALUES (:id, :first_name, :about, :picture_url, :is_super_host, :member_since)
	ON CONFLICT(id) DO UPDATE SET
	    first_name    = excluded.first_name,
	    about         = excluded.about,
	    picture_url   = excluded.picture_url,
	    is_super_host = excluded.is_super_host,
	    member_since  = excluded.member_since`

const upsertFavoriteSQL = `
	INSERT INTO favorite (listing_id, is_favorite)
	VALUES (:listing_id, :is_favorite)
	ON CONFLICT(listing_id) DO UPDATE SET
	    is_favorite = excluded.is_favorite`

// UpsertListings inserts or updates listings by ID. Updates never delete the
// row, so dependent media and favorites survive.
func (s *Store) UpsertListings(ctx context.Context, listings ...model.Listing) error {
	return s.write(ctx, "upserting listings", []string{tableListings}, func(tx *sqlx.Tx) error {
		return upsertListings(ctx, tx, listings)
	})
}

// UpsertMedia inserts or updates media by ID. Every row must reference an
// existing listing.
func (s *Store) UpsertMedia(ctx context.Context, media ...model.Media) error {
	return s.write(ctx, "upserting media", []string{tableMedia}, func(tx *sqlx.Tx) error {
		return upsertMedia(ctx, tx, media)
	})
}

// UpsertUsers inserts or updates users by ID.
func (s *Store) UpsertUsers(ctx context.Context, users ...model.User) error {
	return s.write(ctx, "upserting users", []string{tableUsers}, func(tx *sqlx.Tx) error {
		return upsertUsers(ctx, tx, users)
	})
}

// UpsertFavorites inserts or updates favorite rows. Every row must reference
// an existing listing.
func (s *Store) UpsertFavorites(ctx context.Context, favorites ...model.Favorite) error {
	return s.write(ctx, "upserting favorites", []string{tableFavorite}, func(tx *sqlx.Tx) error {
		for _, f := range favorites {
			if _, err := tx.NamedExecContext(ctx, upsertFavoriteSQL, f); err != nil {
				return fmt.Errorf("favorite %q: %w", f.ListingID, err)
			}
		}
		return nil
	})
}

// SetFavorite marks or unmarks a listing as favorite.
func (s *Store) SetFavorite(ctx context.Context, listingID string, favorite bool) error {
	return s.UpsertFavorites(ctx, model.Favorite{ListingID: listingID, IsFavorite: favorite})
}

// DeleteListing removes a listing; its media and favorite rows cascade.
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	tables := []string{tableListings, tableMedia, tableFavorite}
	return s.write(ctx, "deleting listing", tables, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
		return err
	})
}

// SaveSnapshot writes users, listings and media in a single transaction. The
// media of every snapshot listing are replaced so their order follows the
// snapshot. With prune set, listings missing from the snapshot are deleted
// (cascading to their media and favorites). On error nothing is written.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot, prune bool) (SnapshotResult, error) {
	res := SnapshotResult{
		Users:    len(snap.Users),
		Listings: len(snap.Listings),
		Media:    len(snap.Media),
	}
	tables := []string{tableUsers, tableListings, tableMedia, tableFavorite}

	err := s.write(ctx, "saving snapshot", tables, func(tx *sqlx.Tx) error {
		if err := upsertUsers(ctx, tx, snap.Users); err != nil {
			return err
		}
		if err := upsertListings(ctx, tx, snap.Listings); err != nil {
			return err
		}
		for _, l := range snap.Listings {
			if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE listing_id = ?`, l.ID); err != nil {
				return fmt.Errorf("clearing media for %q: %w", l.ID, err)
			}
		}
		if err := upsertMedia(ctx, tx, snap.Media); err != nil {
			return err
		}
		if !prune {
			return nil
		}
		n, err := pruneListings(ctx, tx, snap.Listings)
		res.Pruned = n
		return err
	})
	if err != nil {
		return SnapshotResult{}, err
	}
	return res, nil
}

func upsertListings(ctx context.Context, tx *sqlx.Tx, listings []model.Listing) error {
	for _, l := range listings {
		if _, err := tx.NamedExecContext(ctx, upsertListingSQL, l); err != nil {
			return fmt.Errorf("listing %q: %w", l.ID, err)
		}
	}
	return nil
}

func upsertMedia(ctx context.Context, tx *sqlx.Tx, media []model.Media) error {
	for _, m := range media {
		if _, err := tx.NamedExecContext(ctx, upsertMediaSQL, m); err != nil {
			return fmt.Errorf("media %q: %w", m.ID, err)
		}
	}
	return nil
}

func upsertUsers(ctx context.Context, tx *sqlx.Tx, users []model.User) error {
	for _, u := range users {
		if _, err := tx.NamedExecContext(ctx, upsertUserSQL, u); err != nil {
			return fmt.Errorf("user %q: %w", u.ID, err)
		}
	}
	return nil
}

func pruneListings(ctx context.Context, tx *sqlx.Tx, keep []model.Listing) (int64, error) {
	q, args := `DELETE FROM listings`, []any(nil)
	if len(keep) > 0 {
		ids := make([]string, len(keep))
		for i, l := range keep {
			ids[i] = l.ID
		}
		var err error
		q, args, err = sqlx.In(`DELETE FROM listings WHERE id NOT IN (?)`, ids)
		if err != nil {
			return 0, fmt.Errorf("building prune query: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return 0, fmt.Errorf("pruning listings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- live reads --------------------------------------------------------------

const listingColumns = `l.id AS id, l.host_id AS host_id, l.price AS price,
	l.description AS description, l.title AS title, l.property_type AS property_type`

// propertyTypeClause matches everything when the bound filter is NULL.
const propertyTypeClause = `CASE WHEN ? IS NULL THEN 1 ELSE l.property_type = ? END`

// Listing observes a single listing. It emits nil while the listing does not
// exist.
func (s *Store) Listing(id string) flow.Flow[*model.Listing] {
	return observe(s.tracker, []string{tableListings}, func(ctx context.Context) (*model.Listing, error) {
		var l model.Listing
		err := s.db.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM listings l WHERE l.id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // intentional: "not found" sentinel
		}
		if err != nil {
			return nil, fmt.Errorf("querying listing %q: %w", id, err)
		}
		return &l, nil
	})
}

// Listings observes one page of listings ordered by title, descending.
func (s *Store) Listings(q model.ListingQuery) flow.Flow[[]model.Listing] {
	stmt, tables := listingsSQL(q, `SELECT `+listingColumns)
	stmt += ` ORDER BY l.title DESC, l.id LIMIT ? OFFSET ?`
	filter := propertyTypeArg(q.PropertyType)

	return observe(s.tracker, tables, func(ctx context.Context) ([]model.Listing, error) {
		listings := []model.Listing{}
		if err := s.db.SelectContext(ctx, &listings, stmt, filter, filter, limitArg(q.Limit), q.Offset); err != nil {
			return nil, fmt.Errorf("querying listings: %w", err)
		}
		return listings, nil
	})
}

// CountListings observes the number of listings matching q's filters. Limit
// and Offset are ignored.
func (s *Store) CountListings(q model.ListingQuery) flow.Flow[int] {
	stmt, tables := listingsSQL(q, `SELECT COUNT(*)`)
	filter := propertyTypeArg(q.PropertyType)

	return observe(s.tracker, tables, func(ctx context.Context) (int, error) {
		var n int
		if err := s.db.GetContext(ctx, &n, stmt, filter, filter); err != nil {
			return 0, fmt.Errorf("counting listings: %w", err)
		}
		return n, nil
	})
}

// listingsSQL builds the FROM/WHERE part shared by Listings and
// CountListings.
func listingsSQL(q model.ListingQuery, selectClause string) (string, []string) {
	if q.Favorites {
		return selectClause + ` FROM listings l
			INNER JOIN favorite f ON f.listing_id = l.id
			WHERE f.is_favorite = 1 AND ` + propertyTypeClause,
			[]string{tableListings, tableFavorite}
	}
	return selectClause + ` FROM listings l WHERE ` + propertyTypeClause, []string{tableListings}
}

// Favorite observes whether a listing is marked as favorite.
func (s *Store) Favorite(listingID string) flow.Flow[bool] {
	return observe(s.tracker, []string{tableFavorite}, func(ctx context.Context) (bool, error) {
		var fav bool
		err := s.db.GetContext(ctx, &fav, `SELECT is_favorite FROM favorite WHERE listing_id = ?`, listingID)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("querying favorite %q: %w", listingID, err)
		}
		return fav, nil
	})
}

// Media observes one page of a listing's media in insertion order.
func (s *Store) Media(q model.MediaQuery) flow.Flow[[]model.Media] {
	const stmt = `
		SELECT id, listing_id, url, description
		FROM media WHERE listing_id = ?
		ORDER BY rowid LIMIT ? OFFSET ?`

	return observe(s.tracker, []string{tableMedia}, func(ctx context.Context) ([]model.Media, error) {
		media := []model.Media{}
		if err := s.db.SelectContext(ctx, &media, stmt, q.ListingID, limitArg(q.Limit), q.Offset); err != nil {
			return nil, fmt.Errorf("querying media for %q: %w", q.ListingID, err)
		}
		return media, nil
	})
}

// CountMedia observes the number of media rows of a listing.
func (s *Store) CountMedia(listingID string) flow.Flow[int] {
	return observe(s.tracker, []string{tableMedia}, func(ctx context.Context) (int, error) {
		var n int
		if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM media WHERE listing_id = ?`, listingID); err != nil {
			return 0, fmt.Errorf("counting media for %q: %w", listingID, err)
		}
		return n, nil
	})
}

// User observes a single user. It emits nil while the user does not exist.
func (s *Store) User(id string) flow.Flow[*model.User] {
	const stmt = `
		SELECT id, first_name, about, picture_url, is_super_host, member_since
		FROM users WHERE id = ?`

	return observe(s.tracker, []string{tableUsers}, func(ctx context.Context) (*model.User, error) {
		var u model.User
		err := s.db.GetContext(ctx, &u, stmt, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // intentional: "not found" sentinel
		}
		if err != nil {
			return nil, fmt.Errorf("querying user %q: %w", id, err)
		}
		return &u, nil
	})
}

// --- one-shot reads ----------------------------------------------------------

// Counts returns the current row count of every table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	const q = `
		SELECT
		    (SELECT COUNT(*) FROM listings)                       AS listings,
		    (SELECT COUNT(*) FROM media)                          AS media,
		    (SELECT COUNT(*) FROM users)                          AS users,
		    (SELECT COUNT(*) FROM favorite WHERE is_favorite = 1) AS favorites`
	var c Counts
	if err := s.db.GetContext(ctx, &c, q); err != nil {
		return Counts{}, fmt.Errorf("counting rows: %w", err)
	}
	return c, nil
}

// --- helpers -----------------------------------------------------------------

// propertyTypeArg binds an empty filter as NULL so the CASE clause matches
// every row.
func propertyTypeArg(propertyType string) any {
	if propertyType == "" {
		return nil
	}
	return propertyType
}

func limitArg(limit int) int {
	if limit <= 0 {
		return model.DefaultPageLimit
	}
	return limit
}
