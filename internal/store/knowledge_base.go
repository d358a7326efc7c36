package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// KnowledgeBase stores user documents as FTS5-searchable chunks.
type KnowledgeBase struct {
	db        *DB
	chunkSize int
	overlap   int
}

// NewKnowledgeBase creates a knowledge base. Non-positive sizes fall back
// to 1000-rune chunks with 200 runes of overlap.
func NewKnowledgeBase(db *DB, chunkSize, overlap int) *KnowledgeBase {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = min(200, chunkSize/5)
	}
	return &KnowledgeBase{db: db, chunkSize: chunkSize, overlap: overlap}
}

// Store replaces any document with the same name and returns the number of
// chunks written. Empty content stores nothing and returns 0.
func (kb *KnowledgeBase) Store(ctx context.Context, name, content, docType string) (int, error) {
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}
	chunks := chunkText(content, kb.chunkSize, kb.overlap)

	tx, err := kb.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store document: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE doc_name = ?`, name); err != nil {
		return 0, fmt.Errorf("store document: clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_documents WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("store document: clear document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kb_documents (name, doc_type, chunks, added_at) VALUES (?, ?, ?, ?)`,
		name, docType, len(chunks), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("store document: %w", err)
	}

	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kb_chunks (id, doc_name, seq, content) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), name, i, chunk,
		)
		if err != nil {
			return 0, fmt.Errorf("store document chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store document: commit: %w", err)
	}
	return len(chunks), nil
}

// List returns all documents, oldest first.
func (kb *KnowledgeBase) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := kb.db.sql.QueryContext(ctx,
		`SELECT name, doc_type, chunks, added_at FROM kb_documents ORDER BY added_at, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var d domain.Document
		var addedAt string
		if err := rows.Scan(&d.Name, &d.Type, &d.Chunks, &addedAt); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		d.AddedAt, _ = time.Parse(timeLayout, addedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document and returns how many chunks it had.
// Deleting an unknown name returns 0.
func (kb *KnowledgeBase) Delete(ctx context.Context, name string) (int, error) {
	tx, err := kb.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE doc_name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_documents WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete document: commit: %w", err)
	}
	return int(n), nil
}

// Search finds the k best chunks and formats them grouped by document, at
// most three chunks per document. It returns "" when nothing matches.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, k int) (string, error) {
	match := matchQuery(query)
	if match == "" {
		return "", nil
	}
	if k <= 0 {
		k = 5
	}

	rows, err := kb.db.sql.QueryContext(ctx,
		`SELECT c.doc_name, c.content
		 FROM kb_fts
		 JOIN kb_chunks c ON c.rowid = kb_fts.rowid
		 WHERE kb_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, k,
	)
	if err != nil {
		return "", fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var order []string
	byDoc := make(map[string][]string)
	for rows.Next() {
		var name, content string
		if err := rows.Scan(&name, &content); err != nil {
			return "", fmt.Errorf("search documents: %w", err)
		}
		if _, ok := byDoc[name]; !ok {
			order = append(order, name)
		}
		byDoc[name] = append(byDoc[name], content)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("search documents: %w", err)
	}
	if len(order) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("\n[Relevant Documents]:\n")
	for _, name := range order {
		chunks := byDoc[name]
		if len(chunks) > 3 {
			chunks = chunks[:3]
		}
		fmt.Fprintf(&sb, "\n--- From '%s' ---\n", name)
		sb.WriteString(strings.Join(chunks, "\n"))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
