package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iBuildiPawn/RustTaTor/internal/model"
)

// DefaultFileName is the database file name under the data directory.
const DefaultFileName = "history.db"

// Store is the SQLite-backed history of exits and rotations.
// Safe for concurrent use; writes serialize on the single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and if needed creates) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// One writer only; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close() //nolint:errcheck // Open failed, close is best effort
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // Open failed, close is best effort
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// createTables creates the schema if it does not exist.
func (s *Store) createTables(ctx context.Context) error {
	schema := `
	-- One row per resolved exit node
	CREATE TABLE IF NOT EXISTS exit_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		country_name TEXT,
		country_code TEXT,
		city TEXT,
		is_tor_exit INTEGER NOT NULL DEFAULT 0,
		rotation_seq INTEGER NOT NULL,
		resolved_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exit_records_address ON exit_records(address);
	CREATE INDEX IF NOT EXISTS idx_exit_records_resolved ON exit_records(resolved_at);

	-- One row per rotation attempt outcome
	CREATE TABLE IF NOT EXISTS rotation_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		confirmed INTEGER NOT NULL DEFAULT 1,
		occurred_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rotation_events_seq ON rotation_events(seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordExit stores one resolved exit record.
func (s *Store) RecordExit(ctx context.Context, record *model.ExitNodeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exit_records
			(address, country_name, country_code, city, is_tor_exit, rotation_seq, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Address,
		record.CountryName,
		record.CountryCode,
		record.City,
		record.IsTorExit,
		record.RotationSeq,
		record.ResolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}
	return nil
}

// RecordRotation stores one rotation event.
func (s *Store) RecordRotation(ctx context.Context, seq uint64, confirmed bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rotation_events (seq, confirmed) VALUES (?, ?)`,
		seq, confirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to record rotation: %w", err)
	}
	return nil
}

// RecentExits returns the latest limit exit records, newest first.
func (s *Store) RecentExits(ctx context.Context, limit int) ([]model.ExitNodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, country_name, country_code, city, is_tor_exit, rotation_seq, resolved_at
		FROM exit_records
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exits: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Rows close after full iteration

	var records []model.ExitNodeRecord
	for rows.Next() {
		var r model.ExitNodeRecord
		if err := rows.Scan(
			&r.Address,
			&r.CountryName,
			&r.CountryCode,
			&r.City,
			&r.IsTorExit,
			&r.RotationSeq,
			&r.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan exit record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exits: %w", err)
	}
	return records, nil
}

// AddressCount is the number of times one exit address was observed.
type AddressCount struct {
	Address string
	Count   int
}

// ExitCounts returns per-address observation counts, most frequent first.
func (s *Store) ExitCounts(ctx context.Context) ([]AddressCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, COUNT(*) AS n
		FROM exit_records
		GROUP BY address
		ORDER BY n DESC, address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exit counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Rows close after full iteration

	var counts []AddressCount
	for rows.Next() {
		var c AddressCount
		if err := rows.Scan(&c.Address, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan exit count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exit counts: %w", err)
	}
	return counts, nil
}

// RotationCount returns the number of recorded rotation events.
func (s *Store) RotationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rotation_events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rotations: %w", err)
	}
	return n, nil
}
