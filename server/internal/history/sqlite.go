package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteSink persists records to a single SQLite table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("history: create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS calculations (
		id          TEXT PRIMARY KEY,
		op          TEXT NOT NULL,
		system_type TEXT NOT NULL,
		status      TEXT NOT NULL,
		outcome     BLOB NOT NULL,
		created_at  INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Save inserts r.
func (s *SQLiteSink) Save(ctx context.Context, r *Record) error {
	payload, err := json.Marshal(r.Outcome)
	if err != nil {
		return fmt.Errorf("history: encode outcome: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calculations (id, op, system_type, status, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Op, r.System, r.Outcome.Status, payload, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit records created after since, oldest first.
func (s *SQLiteSink) Recent(ctx context.Context, since time.Time, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, system_type, outcome, created_at FROM (
			SELECT * FROM calculations WHERE created_at > ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`,
		since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("history: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		var (
			r       Record
			payload []byte
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Op, &r.System, &payload, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Outcome); err != nil {
			return nil, fmt.Errorf("history: decode %s: %w", r.ID, err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }
