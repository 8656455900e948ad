// Package papers tracks rendered papers: a sqlite index of render
// history plus filesystem scanning of output directories.
package papers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Paper is one rendered document.
type Paper struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS papers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	filename TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_papers_user ON papers(user_id);
`

// Index is a sqlite-backed record of rendered papers.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index at path. Use ":memory:" for an
// ephemeral index.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent renders.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Record stores a rendered paper, replacing any prior record with the
// same filename.
func (ix *Index) Record(ctx context.Context, p Paper) error {
	if p.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO papers (topic, filename, path, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			topic = excluded.topic,
			path = excluded.path,
			user_id = excluded.user_id,
			created_at = excluded.created_at`,
		p.Topic, p.Filename, p.Path, p.UserID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("record paper: %w", err)
	}
	return nil
}

// List returns recorded papers, newest first. An empty userID returns
// all papers.
func (ix *Index) List(ctx context.Context, userID string) ([]Paper, error) {
	query := `SELECT id, topic, filename, path, user_id, created_at FROM papers`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		var p Paper
		if err := rows.Scan(&p.ID, &p.Topic, &p.Filename, &p.Path, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// Lookup returns the record for a filename, or sql.ErrNoRows wrapped if
// none exists.
func (ix *Index) Lookup(ctx context.Context, filename string) (Paper, error) {
	var p Paper
	err := ix.db.QueryRowContext(ctx, `
		SELECT id, topic, filename, path, user_id, created_at
		FROM papers WHERE filename = ?`, filename).
		Scan(&p.ID, &p.Topic, &p.Filename, &p.Path, &p.UserID, &p.CreatedAt)
	if err != nil {
		return Paper{}, fmt.Errorf("lookup %s: %w", filename, err)
	}
	return p, nil
}
