// Package store persists post records in SQLite. The ingestion pipeline is
// the only writer; the ranking engine and refresh passes are readers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

// ErrNotFound reports that no row exists for the requested post key.
var ErrNotFound = errors.New("post not found")

// Store handles all database operations.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dbPath and applies
// the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL,
		post_key TEXT PRIMARY KEY,
		source_url TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		likes INTEGER NOT NULL DEFAULT 0,
		retweets INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		author_id TEXT NOT NULL DEFAULT '',
		author_name TEXT NOT NULL DEFAULT '',
		author_handle TEXT NOT NULL DEFAULT '',
		author_avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

const postColumns = `post_key, source_url, media_url, content,
		likes, retweets, views,
		author_id, author_name, author_handle, author_avatar_url,
		created_at, updated_at`

// FindByKey returns the stored record for key, or ErrNotFound.
func (s *Store) FindByKey(ctx context.Context, key string) (record.PostRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE post_key = ?`, key)

	rec, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.PostRecord{}, ErrNotFound
	}
	return rec, err
}

// Insert writes a brand-new record. CreatedAt and UpdatedAt are set here,
// once, by the store.
func (s *Store) Insert(ctx context.Context, rec record.PostRecord) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, `+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), rec.Key, rec.SourceURL, rec.MediaURL, rec.Text,
		rec.Metrics.Likes, rec.Metrics.Retweets, rec.Metrics.Views,
		rec.Author.ID, rec.Author.DisplayName, rec.Author.Handle, rec.Author.AvatarURL,
		now, now)
	return err
}

// Update replaces every mutable field of the row for rec.Key in a single
// statement and refreshes updated_at; created_at is never touched. A single
// statement means an error cannot leave a partial write behind.
func (s *Store) Update(ctx context.Context, rec record.PostRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET
			source_url = ?, media_url = ?, content = ?,
			likes = ?, retweets = ?, views = ?,
			author_id = ?, author_name = ?, author_handle = ?, author_avatar_url = ?,
			updated_at = ?
		WHERE post_key = ?
	`, rec.SourceURL, rec.MediaURL, rec.Text,
		rec.Metrics.Likes, rec.Metrics.Retweets, rec.Metrics.Views,
		rec.Author.ID, rec.Author.DisplayName, rec.Author.Handle, rec.Author.AvatarURL,
		time.Now().UTC(), rec.Key)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TopPosts returns up to limit records eligible for ranking, ordered by
// composite score descending with ties broken by insertion order. rowid is
// the final tiebreaker so the result is a deterministic total order.
func (s *Store) TopPosts(ctx context.Context, limit int) ([]record.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE source_url != ''
		ORDER BY (likes + retweets + views) DESC, created_at ASC, rowid ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

// All returns every stored record in insertion order, for the refresh passes.
func (s *Store) All(ctx context.Context) ([]record.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Probe verifies the database is usable with an insert/read/delete
// round-trip on a throwaway row.
func (s *Store) Probe(ctx context.Context) error {
	key := "probe-" + uuid.NewString()
	probe := record.PostRecord{
		Key:       key,
		SourceURL: "https://twitter.com/probe/status/0",
		Text:      "connectivity probe",
	}

	if err := s.Insert(ctx, probe); err != nil {
		return fmt.Errorf("probe insert: %w", err)
	}
	if _, err := s.FindByKey(ctx, key); err != nil {
		return fmt.Errorf("probe read: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE post_key = ?`, key); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPost(row scannable) (record.PostRecord, error) {
	var rec record.PostRecord
	err := row.Scan(
		&rec.Key, &rec.SourceURL, &rec.MediaURL, &rec.Text,
		&rec.Metrics.Likes, &rec.Metrics.Retweets, &rec.Metrics.Views,
		&rec.Author.ID, &rec.Author.DisplayName, &rec.Author.Handle, &rec.Author.AvatarURL,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func scanPosts(rows *sql.Rows) ([]record.PostRecord, error) {
	var posts []record.PostRecord
	for rows.Next() {
		rec, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, rec)
	}
	return posts, rows.Err()
}
