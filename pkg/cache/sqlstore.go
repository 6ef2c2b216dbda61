package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

// SQLStore persists cache entries in a SQLite database, for suites
// that share a healing cache across many runs and want transactional
// saves rather than whole-file rewrites.
type SQLStore struct {
	db *sql.DB
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS healing_cache (
	locator_fp        TEXT NOT NULL,
	page_fp           TEXT NOT NULL,
	original_kind     TEXT NOT NULL,
	original_value    TEXT NOT NULL,
	healed_kind       TEXT NOT NULL,
	healed_value      TEXT NOT NULL,
	confidence        REAL NOT NULL,
	last_validated_at INTEGER NOT NULL,
	last_failed_at    INTEGER,
	hit_count         INTEGER NOT NULL DEFAULT 0,
	strikes           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (locator_fp, page_fp)
)`

// NewSQLStore opens (creating if needed) a SQLite-backed store.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open healing cache db: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init healing cache schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *SQLStore) Load() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT locator_fp, page_fp,
		       original_kind, original_value,
		       healed_kind, healed_value,
		       confidence, last_validated_at, last_failed_at,
		       hit_count, strikes
		FROM healing_cache`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			origKind     string
			healedKind   string
			validatedAt  int64
			failedAt     sql.NullInt64
		)
		if err := rows.Scan(
			&e.Key.Locator, &e.Key.Page,
			&origKind, &e.Original.Value,
			&healedKind, &e.Healed.Value,
			&e.Confidence, &validatedAt, &failedAt,
			&e.HitCount, &e.Strikes,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		e.Original.Kind = locator.Kind(origKind)
		e.Healed.Kind = locator.Kind(healedKind)
		e.LastValidatedAt = time.Unix(0, validatedAt)
		if failedAt.Valid {
			e.LastFailedAt = time.Unix(0, failedAt.Int64)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// Save implements Store. Entries are replaced wholesale inside one
// transaction; the cache is the source of truth while the process
// runs.
func (s *SQLStore) Save(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save healing cache: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM healing_cache`); err != nil {
		return fmt.Errorf("save healing cache: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO healing_cache (
			locator_fp, page_fp,
			original_kind, original_value,
			healed_kind, healed_value,
			confidence, last_validated_at, last_failed_at,
			hit_count, strikes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save healing cache: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var failedAt interface{}
		if !e.LastFailedAt.IsZero() {
			failedAt = e.LastFailedAt.UnixNano()
		}
		if _, err := stmt.Exec(
			e.Key.Locator, e.Key.Page,
			string(e.Original.Kind), e.Original.Value,
			string(e.Healed.Kind), e.Healed.Value,
			e.Confidence, e.LastValidatedAt.UnixNano(), failedAt,
			e.HitCount, e.Strikes,
		); err != nil {
			return fmt.Errorf("save healing cache: %w", err)
		}
	}

	return tx.Commit()
}
