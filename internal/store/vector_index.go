package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
)

const (
	chunkKindEntry  = "entry"
	chunkKindWindow = "window"

	// windowTurns turns per indexed window, overlapping the previous one by windowOverlap.
	windowTurns   = 5
	windowOverlap = 2
)

// TurnSource supplies the full turn log for reindexing.
type TurnSource interface {
	AllTurns(ctx context.Context) ([]domain.Turn, error)
}

// VectorIndex retrieves past conversation with SQLite FTS5 ranking.
// Single turns are added live; IndexAll rebuilds overlapping windows from
// the turn log.
type VectorIndex struct {
	db    *DB
	turns TurnSource
}

// NewVectorIndex creates an index over db that rebuilds from turns.
func NewVectorIndex(db *DB, turns TurnSource) *VectorIndex {
	return &VectorIndex{db: db, turns: turns}
}

// AddMemory indexes a single turn. Re-adding the same role and text is a no-op.
func (v *VectorIndex) AddMemory(ctx context.Context, role domain.Role, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := v.db.sql.ExecContext(ctx,
		`INSERT INTO memory_chunks (id, kind, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		hashID(string(role), text), chunkKindEntry, string(role), text,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	return nil
}

// IndexAll replaces the window chunks with overlapping windows of the turn
// log. Entries from AddMemory are kept. It returns the number of windows
// written.
func (v *VectorIndex) IndexAll(ctx context.Context) (int, error) {
	if v.turns == nil {
		return 0, fmt.Errorf("index all: no turn source")
	}
	turns, err := v.turns.AllTurns(ctx)
	if err != nil {
		return 0, fmt.Errorf("index all: %w", err)
	}

	windows := turnWindows(turns, windowTurns, windowOverlap)

	tx, err := v.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index all: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_chunks WHERE kind = ?`, chunkKindWindow); err != nil {
		return 0, fmt.Errorf("index all: reset: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	added := 0
	for _, w := range windows {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO memory_chunks (id, kind, role, content, created_at)
			 VALUES (?, ?, '', ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			hashID(w), chunkKindWindow, w, now,
		)
		if err != nil {
			return 0, fmt.Errorf("index all: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index all: commit: %w", err)
	}
	return added, nil
}

// Search returns up to k matching memories formatted as a context block,
// or "" when nothing matches.
func (v *VectorIndex) Search(ctx context.Context, query string, k int) (string, error) {
	match := matchQuery(query)
	if match == "" {
		return "", nil
	}
	if k <= 0 {
		k = 5
	}

	rows, err := v.db.sql.QueryContext(ctx,
		`SELECT mc.kind, mc.role, mc.content
		 FROM memory_fts
		 JOIN memory_chunks mc ON mc.rowid = memory_fts.rowid
		 WHERE memory_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, k,
	)
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	for rows.Next() {
		var kind, role, content string
		if err := rows.Scan(&kind, &role, &content); err != nil {
			return "", fmt.Errorf("search memories: %w", err)
		}
		if sb.Len() == 0 {
			sb.WriteString("\n[Relevant Past Memories]:\n")
		}
		if kind == chunkKindWindow {
			fmt.Fprintf(&sb, "---\n%s\n---\n", content)
		} else {
			fmt.Fprintf(&sb, "%s: %s\n", role, content)
		}
	}
	return sb.String(), rows.Err()
}

// Count returns the number of indexed chunks.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := v.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_chunks`).Scan(&n)
	return n, err
}

// turnWindows groups turns into blocks of size turns, stepping by
// size-overlap. Each block is the non-empty turns rendered "role: text",
// one per line. Duplicate blocks are emitted once.
func turnWindows(turns []domain.Turn, size, overlap int) []string {
	step := max(1, size-overlap)
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < len(turns); i += step {
		end := min(i+size, len(turns))
		var lines []string
		for _, t := range turns[i:end] {
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			lines = append(lines, t.Line())
		}
		block := strings.Join(lines, "\n")
		if block != "" && !seen[block] {
			seen[block] = true
			out = append(out, block)
		}
	}
	return out
}
