package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
)

func TestElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "just moments ago"},
		{119 * time.Second, "just moments ago"},
		{2 * time.Minute, "about 2 minutes ago"},
		{59 * time.Minute, "about 59 minutes ago"},
		{time.Hour, "about 1 hour ago"},
		{5*time.Hour + 30*time.Minute, "about 5 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{6 * 24 * time.Hour, "6 days ago"},
		{7 * 24 * time.Hour, "1 week ago"},
		{8 * 24 * time.Hour, "1 week and 1 day ago"},
		{23 * 24 * time.Hour, "3 weeks and 2 days ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Elapsed(tt.d), tt.d.String())
	}
}

func newTestInstructions(t *testing.T, mem domain.MemoryStore, persona string) *Instructions {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	b := NewInstructions(func() string { return persona }, mem, "Sam", ny, 500, logging.Nop())
	b.now = func() time.Time { return time.Date(2026, 1, 5, 20, 30, 0, 0, time.UTC) }
	return b
}

func TestInstructions_FreshInstall(t *testing.T) {
	b := newTestInstructions(t, newFakeMemory(), "")
	got := b.Build(context.Background())
	assert.Equal(t,
		"You are a helpful voice assistant.\n\n[CURRENT TIME]\nRight now it is Monday, January 05, 2026 at 03:30 PM (Eastern Time).\n",
		got)
}

func TestInstructions_AllSections(t *testing.T) {
	mem := newFakeMemory()
	ctx := context.Background()
	require.NoError(t, mem.MergeFacts(ctx, []domain.Fact{{Subject: "User", Attribute: "pet", Value: "a cat named Miso"}}))
	last := time.Date(2026, 1, 3, 14, 0, 0, 0, time.UTC)
	require.NoError(t, mem.AppendTurn(ctx, domain.RoleUser, "good night", last.Add(-time.Minute)))
	require.NoError(t, mem.AppendTurn(ctx, domain.RoleAssistant, "sleep well", last))

	got := newTestInstructions(t, mem, "You are Ara.").Build(ctx)

	want := "You are Ara." +
		"\n\n[USER PROFILE]\n- pet: a cat named Miso\n" +
		"\n\n[CURRENT TIME]\nRight now it is Monday, January 05, 2026 at 03:30 PM (Eastern Time).\n" +
		"Sam last spoke to you 2 days ago (on Saturday, January 03 at 09:00 AM).\n" +
		"\n[Previous Conversation Memory]:\nuser: good night\nassistant: sleep well\n"
	assert.Equal(t, want, got)
}

func TestInstructions_StoreFailureLeavesSectionsEmpty(t *testing.T) {
	mem := newFakeMemory()
	mem.err = errBoom
	got := newTestInstructions(t, mem, "Persona").Build(context.Background())
	assert.True(t, strings.HasPrefix(got, "Persona\n\n[CURRENT TIME]\n"))
	assert.NotContains(t, got, "[USER PROFILE]")
	assert.NotContains(t, got, "Previous Conversation Memory")
}

func TestInstructions_RecentTurnLimit(t *testing.T) {
	mem := newFakeMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, mem.AppendTurn(ctx, domain.RoleUser, string(rune('a'+i)), time.Now()))
	}
	b := newTestInstructions(t, mem, "P")
	b.recentTurns = 2
	got := b.Build(ctx)
	assert.True(t, strings.HasSuffix(got, "\n[Previous Conversation Memory]:\nuser: d\nuser: e\n"))
}

func TestZoneLabel(t *testing.T) {
	assert.Equal(t, "UTC", zoneLabel(time.UTC))
}
