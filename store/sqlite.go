package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteBackend stores records in a single-table sqlite database. Useful on
// hosts where a flat directory of files is awkward (shared app containers)
// or where the session records should live next to other app data.
type SQLiteBackend struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
`

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite backend: path is required")
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %w", ErrStorageUnavailable, err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", ErrStorageUnavailable, key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO records (key, data) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   data = excluded.data,
		   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		key, data)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

func (b *SQLiteBackend) UsedBytes(ctx context.Context) (int64, error) {
	var used sql.NullInt64
	err := b.db.QueryRowContext(ctx, `SELECT SUM(LENGTH(data)) FROM records`).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("%w: stats: %w", ErrStorageUnavailable, err)
	}
	return used.Int64, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
