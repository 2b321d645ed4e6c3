package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-transition
// LogTransition writes an entry to the transition_log table.
func LogTransition(db *sql.DB, entry TransitionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var signalMs interface{}
	if !entry.SignalAt.IsZero() {
		signalMs = entry.SignalAt.UnixMilli()
	}

	_, err := db.Exec(
		`INSERT INTO transition_log (signal_kind, origin, signal_ms, outcome, reason, session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SignalKind,
		nullIfEmpty(entry.Origin),
		signalMs,
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.SessionID),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

// #endregion log-transition

// #region recent-transitions
// RecentTransitions returns up to limit entries, oldest first.
func RecentTransitions(db *sql.DB, limit int) ([]TransitionEntry, error) {
	rows, err := db.Query(
		`SELECT id, signal_kind, origin, signal_ms, outcome, reason, session_id, created_at
		 FROM (SELECT * FROM transition_log ORDER BY id DESC LIMIT ?) ORDER BY id`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionEntry
	for rows.Next() {
		var e TransitionEntry
		var origin, reason, sessionID sql.NullString
		var signalMs sql.NullInt64
		var createdStr string
		if err := rows.Scan(&e.ID, &e.SignalKind, &origin, &signalMs, &e.Outcome, &reason, &sessionID, &createdStr); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.Origin = origin.String
		e.Reason = reason.String
		e.SessionID = sessionID.String
		if signalMs.Valid {
			e.SignalAt = time.UnixMilli(signalMs.Int64)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent-transitions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
