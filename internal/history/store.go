// Package history records completed uploads in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/upload"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id      TEXT PRIMARY KEY,
	file    TEXT NOT NULL,
	url     TEXT NOT NULL,
	target  TEXT NOT NULL,
	size    INTEGER NOT NULL,
	created INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS uploads_created ON uploads(created);
`

type Store struct {
	db *sql.DB
}

// Open creates the database file and its directory when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating history directory: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening history db: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening history db: %v", err)
	}
	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		log.Debug().Str("op", "history/open").Err(err).Msg("could not enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating history schema: %v", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Add(ctx context.Context, r upload.Result) error {
	created := r.Created
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, file, url, target, size, created) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.File, r.URL, r.Target, r.Size, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("error recording upload: %v", err)
	}
	return nil
}

// List returns up to limit uploads, newest first. A limit of 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]upload.Result, error) {
	query := `SELECT id, file, url, target, size, created FROM uploads ORDER BY created DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error reading history: %v", err)
	}
	defer rows.Close()
	var results []upload.Result
	for rows.Next() {
		var r upload.Result
		var created int64
		if err := rows.Scan(&r.ID, &r.File, &r.URL, &r.Target, &r.Size, &created); err != nil {
			return nil, fmt.Errorf("error reading history: %v", err)
		}
		r.Created = time.UnixMilli(created)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads`)
	if err != nil {
		return 0, fmt.Errorf("error clearing history: %v", err)
	}
	return res.RowsAffected()
}
