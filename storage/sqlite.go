package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/akupila/vcr/cassette"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS interactions (
	cassette    TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	status_code INTEGER NOT NULL,
	recorded_at INTEGER,
	data        TEXT    NOT NULL,
	PRIMARY KEY (cassette, seq)
);

CREATE INDEX IF NOT EXISTS idx_interactions_cassette ON interactions(cassette);
`

// SQLiteConfig configures SQLiteStorage.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStorage stores cassettes as rows in a SQLite database, one row per
// interaction. The interaction itself is kept as JSON; method, url and status
// are duplicated into columns for ad hoc queries.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ cassette.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (creating if needed) the database at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	return NewSQLiteStorageWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStorageWithConfig opens a SQLiteStorage with custom configuration.
func NewSQLiteStorageWithConfig(cfg SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cassette.NewStorageError("sqlite", "open", cfg.Path, err)
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, cassette.NewStorageError("sqlite", "init", cfg.Path, err)
	}

	s := &SQLiteStorage{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "vcr.storage.sqlite"),
	}
	s.logger.Debug("sqlite storage initialized", "path", cfg.Path)
	return s, nil
}

// Load implements cassette.Storage.
func (s *SQLiteStorage) Load(ctx context.Context, name string) ([]cassette.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM interactions WHERE cassette = ? ORDER BY seq`, name)
	if err != nil {
		return nil, cassette.NewStorageError("sqlite", "load", name, err)
	}
	defer rows.Close()

	var out []cassette.Interaction
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, cassette.NewStorageError("sqlite", "load", name, err)
		}
		var in cassette.Interaction
		if err := json.Unmarshal([]byte(data), &in); err != nil {
			return nil, cassette.NewStorageError("sqlite", "load", name, fmt.Errorf("decode interaction %d: %w", len(out), err))
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, cassette.NewStorageError("sqlite", "load", name, err)
	}
	return out, nil
}

// Save implements cassette.Storage. Existing rows for the cassette are
// replaced in a single transaction.
func (s *SQLiteStorage) Save(ctx context.Context, name string, interactions []cassette.Interaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cassette.NewStorageError("sqlite", "save", name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE cassette = ?`, name); err != nil {
		return cassette.NewStorageError("sqlite", "save", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interactions (cassette, seq, method, url, status_code, recorded_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cassette.NewStorageError("sqlite", "save", name, err)
	}
	defer stmt.Close()

	for i, in := range interactions {
		data, err := json.Marshal(in)
		if err != nil {
			return cassette.NewStorageError("sqlite", "save", name, fmt.Errorf("encode interaction %d: %w", i, err))
		}
		var recordedAt sql.NullInt64
		if !in.RecordedAt.IsZero() {
			recordedAt = sql.NullInt64{Int64: in.RecordedAt.Unix(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, name, i, in.Request.Method, in.Request.URL, in.Response.StatusCode, recordedAt, string(data)); err != nil {
			return cassette.NewStorageError("sqlite", "save", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cassette.NewStorageError("sqlite", "save", name, err)
	}
	s.logger.Debug("cassette saved", "cassette", name, "interactions", len(interactions))
	return nil
}

// List returns the names of all stored cassettes, sorted.
func (s *SQLiteStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT cassette FROM interactions ORDER BY cassette`)
	if err != nil {
		return nil, cassette.NewStorageError("sqlite", "list", s.path, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, cassette.NewStorageError("sqlite", "list", s.path, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
