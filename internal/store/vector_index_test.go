package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vi := NewVectorIndex(db, NewMemoryStore(db))

	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "My dog Rex loves the beach"))
	require.NoError(t, vi.AddMemory(ctx, domain.RoleAssistant, "Rex sounds like a happy dog"))
	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "I work as a nurse"))

	out, err := vi.Search(ctx, "tell me about my dog", 5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\n[Relevant Past Memories]:\n"))
	assert.Contains(t, out, "user: My dog Rex loves the beach\n")
	assert.Contains(t, out, "assistant: Rex sounds like a happy dog\n")
	assert.NotContains(t, out, "nurse")
}

func TestVectorIndex_AddDedupes(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vi := NewVectorIndex(db, NewMemoryStore(db))

	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "same words"))
	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "same words"))
	require.NoError(t, vi.AddMemory(ctx, domain.RoleAssistant, "same words"))
	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "   "))

	n, err := vi.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVectorIndex_SearchNoMatch(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vi := NewVectorIndex(db, NewMemoryStore(db))

	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "gardening tips"))

	out, err := vi.Search(ctx, "quantum physics", 5)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = vi.Search(ctx, "the of a", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVectorIndex_IndexAllBuildsWindows(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	ms := NewMemoryStore(db)
	vi := NewVectorIndex(db, ms)

	require.NoError(t, vi.AddMemory(ctx, domain.RoleUser, "live entry about Lisbon"))

	texts := []string{
		"I booked a trip to Lisbon",
		"Lisbon is lovely in spring",
		"We fly out in April",
		"Pack light layers",
		"Thanks for the tip",
		"Anything else?",
	}
	for i, text := range texts {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, ms.AppendTurn(ctx, role, text, time.Now()))
	}

	n, err := vi.IndexAll(ctx)
	require.NoError(t, err)
	// windows start at turns 0 and 3
	assert.Equal(t, 2, n)

	count, err := vi.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	out, err := vi.Search(ctx, "Lisbon", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "---\nuser: I booked a trip to Lisbon\nassistant: Lisbon is lovely in spring\n")
	assert.Contains(t, out, "user: live entry about Lisbon\n")

	// A second rebuild replaces windows without touching entries.
	require.NoError(t, ms.AppendTurn(ctx, domain.RoleUser, "One more thing", time.Now()))
	n, err = vi.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err = vi.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestVectorIndex_IndexAllEmptyLog(t *testing.T) {
	db := testDB(t)
	vi := NewVectorIndex(db, NewMemoryStore(db))

	n, err := vi.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
