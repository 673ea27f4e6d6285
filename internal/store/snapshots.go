package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cmdtrace/internal/index"
)

// SaveSnapshot replaces the stored sessions for kind.
func (s *Store) SaveSnapshot(ctx context.Context, kind index.SourceKind, sessions []index.Session, loadedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return failed(err, "begin snapshot tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE source = ?`, string(kind)); err != nil {
		return failed(err, "clear snapshot")
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions(source, id, session_id, title, project, preview,
			message_count, last_activity_ts, first_ts, dir, file)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, id) DO NOTHING
	`)
	if err != nil {
		return failed(err, "prepare snapshot insert")
	}
	defer stmt.Close()
	for _, sess := range sessions {
		if _, err := stmt.ExecContext(ctx, string(kind), sess.ID, sess.SessionID, sess.Title,
			sess.Project, sess.Preview, sess.MessageCount, sess.LastActivity.UnixMilli(),
			nullableTS(sess.FirstTimestamp), sess.Locator.Dir, sess.Locator.File); err != nil {
			return failed(err, "insert snapshot session "+sess.ID)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots(source, loaded_ts) VALUES(?, ?)
		ON CONFLICT(source) DO UPDATE SET loaded_ts=excluded.loaded_ts
	`, string(kind), loadedAt.UnixMilli()); err != nil {
		return failed(err, "write snapshot header")
	}

	if err := tx.Commit(); err != nil {
		return failed(err, "commit snapshot")
	}
	return nil
}

// LoadSnapshot returns the stored sessions for kind, newest first. ok is
// false when kind was never saved.
func (s *Store) LoadSnapshot(ctx context.Context, kind index.SourceKind) ([]index.Session, time.Time, bool, error) {
	var loadedTS int64
	err := s.db.QueryRowContext(ctx, `SELECT loaded_ts FROM snapshots WHERE source = ?`, string(kind)).Scan(&loadedTS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, failed(err, "read snapshot header")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, title, project, preview, message_count,
			last_activity_ts, first_ts, dir, file
		FROM sessions
		WHERE source = ?
		ORDER BY last_activity_ts DESC, id ASC
	`, string(kind))
	if err != nil {
		return nil, time.Time{}, false, failed(err, "read snapshot")
	}
	defer rows.Close()

	sessions := []index.Session{}
	for rows.Next() {
		var (
			sess    index.Session
			lastTS  int64
			firstTS sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.SessionID, &sess.Title, &sess.Project, &sess.Preview,
			&sess.MessageCount, &lastTS, &firstTS, &sess.Locator.Dir, &sess.Locator.File); err != nil {
			return nil, time.Time{}, false, failed(err, "scan snapshot session")
		}
		sess.Source = kind
		sess.LastActivity = time.UnixMilli(lastTS)
		sess.FirstTimestamp = fromNullableTS(firstTS)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, false, failed(err, "read snapshot")
	}
	return sessions, time.UnixMilli(loadedTS), true, nil
}
