package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
// Several targets can share one file; rows are keyed by a name-based UUID
// of the target and the key.
type SQLiteStore struct {
	db     *sql.DB
	target string
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the store at dbPath for target. Use ":memory:" for
// testing.
func NewSQLiteStore(dbPath, target string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}

	// Verify the connection works.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}

	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS storage (
			id         TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create table: %w", err)
	}

	return &SQLiteStore{db: db, target: target}, nil
}

// rowID derives the row id for key.
func (s *SQLiteStore) rowID(key Key) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.target+"\x00"+string(key))).String()
}

// Retrieve implements Store.
func (s *SQLiteStore) Retrieve(ctx context.Context, key Key, v any) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM storage WHERE id = ?`, s.rowID(key))

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("session: retrieve %s: %w", key, err)
	}

	if err := json.UnmarshalFromString(raw, v); err != nil {
		return false, fmt.Errorf("session: decode %s: %w", key, err)
	}
	return true, nil
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, key Key, v any) error {
	raw, err := json.MarshalToString(v)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", key, err)
	}

	query := `
		INSERT INTO storage (id, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, s.rowID(key), raw, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("session: write %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
