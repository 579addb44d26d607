package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database
const MemoryDSN = ":memory:"

// foreignKeysPragma is applied by the driver to every new connection
const foreignKeysPragma = "_pragma=foreign_keys(1)"

// SQLiteStore keeps listings and their files in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the database addressed by dsn and runs migrations.
// dsn is either a plain path, a "file:" URI or ":memory:".
func Open(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("listing store dsn is required")
	}

	memory := isMemory(dsn)
	if !memory {
		if dir := filepath.Dir(dsnPath(dsn)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, foreignKeysPragma) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + foreignKeysPragma
	}
	return dsn + "?" + foreignKeysPragma
}

func isMemory(dsn string) bool {
	return dsn == MemoryDSN || strings.Contains(dsn, "mode=memory") || dsnPath(dsn) == MemoryDSN
}

func dsnPath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// FindListingWithFiles returns the listing and its files in insertion order
func (s *SQLiteStore) FindListingWithFiles(ctx context.Context, id string) (*Listing, error) {
	var l Listing
	err := s.db.QueryRowContext(ctx, `
		SELECT id, creator_id, status FROM listings WHERE id = ?`, id).
		Scan(&l.ID, &l.CreatorID, &l.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, language, is_main, storage_key
		FROM listing_files WHERE listing_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying listing files: %w", err)
	}
	defer rows.Close()

	l.Files = []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Filename, &f.Language, &f.IsMain, &f.StorageKey); err != nil {
			return nil, fmt.Errorf("scanning listing file: %w", err)
		}
		l.Files = append(l.Files, f)
	}
	return &l, rows.Err()
}

// CreateListing inserts a new listing together with its files
func (s *SQLiteStore) CreateListing(ctx context.Context, l *Listing) error {
	if err := validateListing(l); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listings (id, creator_id, status) VALUES (?, ?, ?)`,
			l.ID, l.CreatorID, string(l.Status)); err != nil {
			return fmt.Errorf("inserting listing: %w", err)
		}
		return insertFiles(ctx, tx, l.ID, 0, l.Files)
	})
}

// SaveListing inserts the listing or replaces an existing one and all of its files
func (s *SQLiteStore) SaveListing(ctx context.Context, l *Listing) error {
	if err := validateListing(l); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listings (id, creator_id, status) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET creator_id = excluded.creator_id, status = excluded.status`,
			l.ID, l.CreatorID, string(l.Status)); err != nil {
			return fmt.Errorf("upserting listing: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_files WHERE listing_id = ?`, l.ID); err != nil {
			return fmt.Errorf("clearing listing files: %w", err)
		}
		return insertFiles(ctx, tx, l.ID, 0, l.Files)
	})
}

// AddFile appends a file to an existing listing
func (s *SQLiteStore) AddFile(ctx context.Context, listingID string, f File) error {
	if err := validateFile(f); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(f.position) + 1, 0)
			FROM listings l LEFT JOIN listing_files f ON f.listing_id = l.id
			WHERE l.id = ? GROUP BY l.id`, listingID).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, listingID)
		}
		if err != nil {
			return fmt.Errorf("querying file position: %w", err)
		}
		return insertFiles(ctx, tx, listingID, next, []File{f})
	})
}

// Close releases the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertFiles(ctx context.Context, tx *sql.Tx, listingID string, position int, files []File) error {
	for i, f := range files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO listing_files (id, listing_id, position, filename, language, is_main, storage_key)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, listingID, position+i, f.Filename, f.Language, f.IsMain, f.StorageKey); err != nil {
			return fmt.Errorf("inserting file %s: %w", f.ID, err)
		}
	}
	return nil
}

func validateListing(l *Listing) error {
	if l == nil || l.ID == "" {
		return errors.New("listing id is required")
	}
	if l.CreatorID == "" {
		return fmt.Errorf("listing %s: creator id is required", l.ID)
	}
	if l.Status == "" {
		l.Status = StatusDraft
	}
	if !l.Status.Valid() {
		return fmt.Errorf("listing %s: unknown status %q", l.ID, l.Status)
	}
	for _, f := range l.Files {
		if err := validateFile(f); err != nil {
			return fmt.Errorf("listing %s: %w", l.ID, err)
		}
	}
	return nil
}

func validateFile(f File) error {
	if f.ID == "" {
		return errors.New("file id is required")
	}
	if f.Filename == "" {
		return fmt.Errorf("file %s: filename is required", f.ID)
	}
	if f.StorageKey == "" {
		return fmt.Errorf("file %s: storage key is required", f.ID)
	}
	return nil
}
