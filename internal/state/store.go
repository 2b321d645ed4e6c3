package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL UNIQUE,
	start_ms     INTEGER NOT NULL,
	end_ms       INTEGER NOT NULL,
	origin       TEXT,
	manual       INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	CHECK (end_ms > start_ms)
);

CREATE INDEX IF NOT EXISTS sessions_start ON sessions(start_ms);

CREATE TABLE IF NOT EXISTS current_break (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	start_ms     INTEGER NOT NULL,
	origin       TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	key          TEXT PRIMARY KEY,
	value        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transition_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_kind  TEXT NOT NULL,
	origin       TEXT,
	signal_ms    INTEGER,
	outcome      TEXT NOT NULL,
	reason       TEXT,
	session_id   TEXT,
	created_at   TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists sessions, the open-break marker and settings in SQLite.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the transition log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetTimeout bounds every store operation. Zero disables the bound.
func (s *Store) SetTimeout(d time.Duration) {
	s.opTimeout = d
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// #region current
// Current returns the open break marker, or nil when there is none.
func (s *Store) Current(ctx context.Context) (*CurrentSession, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var startMs int64
	var origin sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT start_ms, origin FROM current_break WHERE id = 1`,
	).Scan(&startMs, &origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current: %w", err)
	}
	return &CurrentSession{Start: time.UnixMilli(startMs), Origin: origin.String}, nil
}

// SetCurrent writes the open break marker, replacing any previous one.
func (s *Store) SetCurrent(ctx context.Context, cur CurrentSession) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_break (id, start_ms, origin) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET start_ms = excluded.start_ms, origin = excluded.origin`,
		cur.Start.UnixMilli(), nullIfEmpty(cur.Origin),
	)
	if err != nil {
		return fmt.Errorf("set current: %w", err)
	}
	return nil
}

// ClearCurrent removes the open break marker. Clearing an absent marker is not an error.
func (s *Store) ClearCurrent(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_break WHERE id = 1`); err != nil {
		return fmt.Errorf("clear current: %w", err)
	}
	return nil
}

// #endregion current

// #region sessions
// AppendSession adds a completed session to the log.
func (s *Store) AppendSession(ctx context.Context, sess Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertSession(ctx, tx, &sess); err != nil {
		return err
	}
	return tx.Commit()
}

// CommitSession appends sess (when non-nil) and clears the open break marker
// in one transaction. A generated ID is written back to sess.
func (s *Store) CommitSession(ctx context.Context, sess *Session) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if sess != nil {
		if err := insertSession(ctx, tx, sess); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM current_break WHERE id = 1`); err != nil {
		return fmt.Errorf("clear current: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, sess *Session) error {
	if !sess.End.After(sess.Start) {
		return fmt.Errorf("append session: %w: end %s not after start %s",
			ErrInvalidSession, sess.End.Format(time.RFC3339), sess.Start.Format(time.RFC3339))
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	manual := 0
	if sess.Manual {
		manual = 1
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, start_ms, end_ms, origin, manual, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Start.UnixMilli(), sess.End.UnixMilli(), nullIfEmpty(sess.Origin), manual,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Sessions returns the log in append order. limit <= 0 returns everything;
// otherwise the most recent limit sessions are returned.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT session_id, start_ms, end_ms, origin, manual FROM sessions ORDER BY seq`
	args := []interface{}{}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT session_id, start_ms, end_ms, origin, manual, seq FROM sessions ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows, limit > 0)
}

// SessionsSince returns sessions that started at or after since.
func (s *Store) SessionsSince(ctx context.Context, since time.Time) ([]Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, start_ms, end_ms, origin, manual FROM sessions
		 WHERE start_ms >= ? ORDER BY seq`, since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions since: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows, false)
}

func scanSessions(rows *sql.Rows, withSeq bool) ([]Session, error) {
	var out []Session
	for rows.Next() {
		var sess Session
		var startMs, endMs, seq int64
		var origin sql.NullString
		var manual int
		dest := []interface{}{&sess.ID, &startMs, &endMs, &origin, &manual}
		if withSeq {
			dest = append(dest, &seq)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Start = time.UnixMilli(startMs)
		sess.End = time.UnixMilli(endMs)
		sess.Origin = origin.String
		sess.Manual = manual != 0
		out = append(out, sess)
	}
	return out, rows.Err()
}

// #endregion sessions

// #region settings
// TrackingEnabled reports the tracking flag. Unset means enabled.
func (s *Store) TrackingEnabled(ctx context.Context) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingTracking,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get tracking: %w", err)
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

// SetTrackingEnabled writes the tracking flag.
func (s *Store) SetTrackingEnabled(ctx context.Context, enabled bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingTracking, strconv.FormatBool(enabled),
	)
	if err != nil {
		return fmt.Errorf("set tracking: %w", err)
	}
	return nil
}

// #endregion settings

// #region reset
// Reset wipes the session log and the open break marker. Settings survive.
func (s *Store) Reset(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM current_break`); err != nil {
		return fmt.Errorf("reset current: %w", err)
	}
	return tx.Commit()
}

// #endregion reset

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
