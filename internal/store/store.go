// Package store persists the overlay, user settings and session snapshots
// in a local sqlite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "cmdtrace/internal/errors"
	"cmdtrace/internal/overlay"
)

type Store struct {
	path string
	db   *sql.DB
}

// Open opens (creating when needed) the database at path. reset discards
// any existing file first.
func Open(path string, reset bool) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		if reset {
			for _, suffix := range []string{"", "-wal", "-shm"} {
				_ = os.Remove(path + suffix)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{path: path, db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS metadata (
			id TEXT PRIMARY KEY,
			favorite INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			archived_ts INTEGER,
			custom_name TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS tags (
			name TEXT PRIMARY KEY,
			color TEXT NOT NULL DEFAULT '',
			important INTEGER NOT NULL DEFAULT 0,
			parent TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			source TEXT PRIMARY KEY,
			loaded_ts INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			source TEXT NOT NULL,
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			project TEXT NOT NULL,
			preview TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			last_activity_ts INTEGER NOT NULL,
			first_ts INTEGER,
			dir TEXT NOT NULL,
			file TEXT NOT NULL,
			PRIMARY KEY (source, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_source_activity ON sessions(source, last_activity_ts DESC, id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func failed(err error, op string) error {
	return apperrors.Wrap(err, apperrors.ErrCodeStoreFailed, op)
}

// Load reads the whole overlay.
func (s *Store) Load(ctx context.Context) (overlay.Snapshot, error) {
	snap := overlay.Snapshot{Metadata: make(map[string]overlay.Metadata)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, favorite, pinned, archived, archived_ts, custom_name, tags
		FROM metadata`)
	if err != nil {
		return snap, failed(err, "read metadata")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, name, tags string
			m              overlay.Metadata
			archivedTS     sql.NullInt64
		)
		if err := rows.Scan(&id, &m.Favorite, &m.Pinned, &m.Archived, &archivedTS, &name, &tags); err != nil {
			return snap, failed(err, "scan metadata")
		}
		m.CustomName = name
		m.ArchivedAt = fromNullableTS(archivedTS)
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return snap, failed(err, "decode tags of "+id)
		}
		snap.Metadata[id] = m
	}
	if err := rows.Err(); err != nil {
		return snap, failed(err, "read metadata")
	}

	tagRows, err := s.db.QueryContext(ctx, `SELECT name, color, important, parent FROM tags ORDER BY name`)
	if err != nil {
		return snap, failed(err, "read tags")
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var t overlay.TagInfo
		if err := tagRows.Scan(&t.Name, &t.Color, &t.Important, &t.Parent); err != nil {
			return snap, failed(err, "scan tag")
		}
		snap.Tags = append(snap.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return snap, failed(err, "read tags")
	}
	return snap, nil
}

// Apply writes one overlay change in a single transaction. Deleted tags are
// removed before the upserts so a rename lands as delete plus insert.
func (s *Store) Apply(ctx context.Context, c overlay.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return failed(err, "begin overlay tx")
	}
	defer tx.Rollback()

	for _, name := range c.DeletedTags {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE name = ?`, name); err != nil {
			return failed(err, "delete tag "+name)
		}
	}
	for _, t := range c.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tags(name, color, important, parent)
			VALUES(?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				color=excluded.color,
				important=excluded.important,
				parent=excluded.parent
		`, t.Name, t.Color, t.Important, t.Parent); err != nil {
			return failed(err, "upsert tag "+t.Name)
		}
	}

	if len(c.Metadata) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata(id, favorite, pinned, archived, archived_ts, custom_name, tags)
			VALUES(?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				favorite=excluded.favorite,
				pinned=excluded.pinned,
				archived=excluded.archived,
				archived_ts=excluded.archived_ts,
				custom_name=excluded.custom_name,
				tags=excluded.tags
		`)
		if err != nil {
			return failed(err, "prepare metadata upsert")
		}
		defer stmt.Close()
		for id, m := range c.Metadata {
			tags := m.Tags
			if tags == nil {
				tags = []string{}
			}
			raw, err := json.Marshal(tags)
			if err != nil {
				return failed(err, "encode tags of "+id)
			}
			if _, err := stmt.ExecContext(ctx, id, m.Favorite, m.Pinned, m.Archived,
				nullableTS(m.ArchivedAt), m.CustomName, string(raw)); err != nil {
				return failed(err, "upsert metadata "+id)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return failed(err, "commit overlay change")
	}
	return nil
}

// Setting returns the stored value for key.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, failed(err, "read setting "+key)
	}
	return v, true, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value); err != nil {
		return failed(err, "write setting "+key)
	}
	return nil
}

// VisibleTagsKey holds the pinned sidebar tag names as a JSON array.
const VisibleTagsKey = "visible_tags"

func (s *Store) VisibleTags(ctx context.Context) ([]string, error) {
	v, ok, err := s.Setting(ctx, VisibleTagsKey)
	if err != nil || !ok {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		return nil, failed(err, "decode "+VisibleTagsKey)
	}
	return names, nil
}

func (s *Store) SetVisibleTags(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return s.PutSetting(ctx, VisibleTagsKey, string(raw))
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromNullableTS(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
