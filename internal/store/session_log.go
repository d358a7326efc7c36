package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one relay session as recorded in the session log.
type SessionRecord struct {
	ID          string     `json:"id"`
	RemoteAddr  string     `json:"remoteAddr,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	UserTurns   int        `json:"userTurns"`
	CloseReason string     `json:"closeReason,omitempty"`
}

// SessionLog records relay session lifecycles.
type SessionLog struct {
	db *DB
}

// NewSessionLog creates a session log using the given database.
func NewSessionLog(db *DB) *SessionLog {
	return &SessionLog{db: db}
}

// Started records a new session.
func (s *SessionLog) Started(ctx context.Context, id, remoteAddr string, at time.Time) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO relay_sessions (id, remote_addr, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, remoteAddr, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("session started: %w", err)
	}
	return nil
}

// Ended marks a session closed.
func (s *SessionLog) Ended(ctx context.Context, id string, userTurns int, reason string, at time.Time) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE relay_sessions SET ended_at = ?, user_turns = ?, close_reason = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), userTurns, reason, id,
	)
	if err != nil {
		return fmt.Errorf("session ended: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns the newest sessions first.
func (s *SessionLog) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, remote_addr, started_at, ended_at, user_turns, close_reason
		 FROM relay_sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.RemoteAddr, &startedAt, &endedAt, &r.UserTurns, &r.CloseReason); err != nil {
			return nil, fmt.Errorf("recent sessions: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if endedAt.Valid {
			ts, _ := time.Parse(timeLayout, endedAt.String)
			r.EndedAt = &ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
