package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// MemoryStore is the SQLite turn log and user profile.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a memory store using the given database.
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// AppendTurn records one utterance.
func (m *MemoryStore) AppendTurn(ctx context.Context, role domain.Role, text string, at time.Time) error {
	if !role.Valid() {
		return fmt.Errorf("append turn: invalid role %q", role)
	}
	_, err := m.db.sql.ExecContext(ctx,
		`INSERT INTO turns (role, text, created_at) VALUES (?, ?, ?)`,
		string(role), text, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest limit turns, oldest first.
func (m *MemoryStore) RecentTurns(ctx context.Context, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := m.db.sql.QueryContext(ctx,
		`SELECT role, text, created_at FROM (
		   SELECT id, role, text, created_at FROM turns ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var role, createdAt string
		if err := rows.Scan(&role, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("recent turns: %w", err)
		}
		t.Role = domain.Role(role)
		t.Timestamp, _ = time.Parse(timeLayout, createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AllTurns returns the whole log, oldest first.
func (m *MemoryStore) AllTurns(ctx context.Context) ([]domain.Turn, error) {
	var n int
	if err := m.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	return m.RecentTurns(ctx, n)
}

// LastTurnTime reports when the newest turn was recorded.
func (m *MemoryStore) LastTurnTime(ctx context.Context) (time.Time, bool, error) {
	var createdAt string
	err := m.db.sql.QueryRowContext(ctx,
		`SELECT created_at FROM turns ORDER BY id DESC LIMIT 1`,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last turn: %w", err)
	}
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last turn: %w", err)
	}
	return ts, true, nil
}

// ProfileFacts returns every stored fact ordered by attribute.
func (m *MemoryStore) ProfileFacts(ctx context.Context) ([]domain.Fact, error) {
	rows, err := m.db.sql.QueryContext(ctx,
		`SELECT subject, attribute, value FROM profile_facts ORDER BY attribute_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("profile facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := rows.Scan(&f.Subject, &f.Attribute, &f.Value); err != nil {
			return nil, fmt.Errorf("profile facts: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// MergeFacts upserts facts keyed by lower-cased attribute. Facts with an
// empty attribute or value are skipped.
func (m *MemoryStore) MergeFacts(ctx context.Context, facts []domain.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := m.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge facts: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	for _, f := range facts {
		key := f.Key()
		if key == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profile_facts (attribute_key, subject, attribute, value, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(attribute_key) DO UPDATE SET
			   subject = excluded.subject,
			   attribute = excluded.attribute,
			   value = excluded.value,
			   updated_at = excluded.updated_at`,
			key, f.Subject, strings.TrimSpace(f.Attribute), f.Value, now,
		)
		if err != nil {
			return fmt.Errorf("merge fact %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// DeleteFact removes a profile fact by attribute (case-insensitive).
func (m *MemoryStore) DeleteFact(ctx context.Context, attribute string) error {
	res, err := m.db.sql.ExecContext(ctx,
		`DELETE FROM profile_facts WHERE attribute_key = ?`,
		domain.Fact{Attribute: attribute}.Key(),
	)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
