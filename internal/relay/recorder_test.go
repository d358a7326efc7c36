package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
)

func newTestRecorder(mem *fakeMemory, vec *fakeVectors, ex *Extraction, every int) *Recorder {
	r := &Recorder{
		sessionID:  "s1",
		memory:     mem,
		extraction: ex,
		every:      every,
		log:        logging.Nop(),
		now:        func() time.Time { return time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC) },
	}
	if vec != nil {
		r.vectors = vec
	}
	return r
}

func TestRecorder_RecordsTurns(t *testing.T) {
	mem := newFakeMemory()
	vec := &fakeVectors{}
	r := newTestRecorder(mem, vec, NewExtraction(mem, nil, 500, nil, logging.Nop()), 5)

	r.Record(context.Background(), domain.RoleUser, "hello")
	r.Record(context.Background(), domain.RoleAssistant, "hi there")

	turns := mem.snapshot()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "hi there", turns[1].Text)
	assert.Equal(t, []string{"user: hello", "assistant: hi there"}, vec.added)
	assert.Equal(t, 1, r.UserTurns())
}

func TestRecorder_ExtractsEveryFifthUserTurn(t *testing.T) {
	mem := newFakeMemory()
	ext := &fakeExtractor{facts: []domain.Fact{{Subject: "User", Attribute: "pet", Value: "cat"}}}
	ex := NewExtraction(mem, ext, 500, nil, logging.Nop())
	r := newTestRecorder(mem, nil, ex, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		r.Record(ctx, domain.RoleUser, "turn")
		r.Record(ctx, domain.RoleAssistant, "reply")
	}
	ex.Wait()
	assert.Equal(t, 0, ext.calls())

	r.Record(ctx, domain.RoleUser, "fifth")
	ex.Wait()
	assert.Equal(t, 1, ext.calls())

	for i := 0; i < 5; i++ {
		r.Record(ctx, domain.RoleUser, "more")
	}
	ex.Wait()
	assert.Equal(t, 2, ext.calls())

	r.Finish(ctx)
	ex.Wait()
	assert.Equal(t, 3, ext.calls())
	assert.Equal(t, 3, mem.mergeCount())
}

func TestRecorder_SurvivesStoreFailure(t *testing.T) {
	mem := newFakeMemory()
	mem.err = errBoom
	r := newTestRecorder(mem, nil, NewExtraction(mem, nil, 500, nil, logging.Nop()), 5)
	r.Record(context.Background(), domain.RoleUser, "hello")
	assert.Equal(t, 1, r.UserTurns())
}

func TestExtraction_Run(t *testing.T) {
	mem := newFakeMemory()
	ctx := context.Background()
	require.NoError(t, mem.AppendTurn(ctx, domain.RoleUser, "My dog is called Rex", time.Now()))
	require.NoError(t, mem.AppendTurn(ctx, domain.RoleAssistant, "Nice name!", time.Now()))

	ext := &fakeExtractor{facts: []domain.Fact{{Subject: "User", Attribute: "Dog Name", Value: "Rex"}}}
	ex := NewExtraction(mem, ext, 500, nil, logging.Nop())

	n, err := ex.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "user: My dog is called Rex\nassistant: Nice name!\n", ext.seen[0])

	// Merging the same facts again leaves the profile unchanged.
	_, err = ex.Run(ctx)
	require.NoError(t, err)
	facts, _ := mem.ProfileFacts(ctx)
	assert.Equal(t, []domain.Fact{{Subject: "User", Attribute: "Dog Name", Value: "Rex"}}, facts)
}

func TestExtraction_EmptyHistoryAndErrors(t *testing.T) {
	mem := newFakeMemory()
	ext := &fakeExtractor{}
	ex := NewExtraction(mem, ext, 500, nil, logging.Nop())

	n, err := ex.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ext.calls())

	require.NoError(t, mem.AppendTurn(context.Background(), domain.RoleUser, "hi", time.Now()))
	ext.err = errBoom
	_, err = ex.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)

	// Disabled extraction is a no-op.
	off := NewExtraction(mem, nil, 500, nil, logging.Nop())
	off.Go(context.Background(), "s1", "test")
	off.Wait()
	n, err = off.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestExtraction_GoOutlivesCancellation(t *testing.T) {
	mem := newFakeMemory()
	require.NoError(t, mem.AppendTurn(context.Background(), domain.RoleUser, "I live in Boston", time.Now()))
	ext := &fakeExtractor{facts: []domain.Fact{{Attribute: "city", Value: "Boston"}}}

	hm := hooks.NewManager(logging.Nop())
	done := make(chan hooks.Payload, 1)
	hm.On(hooks.EventFactsExtracted, "test", func(_ context.Context, p hooks.Payload) error {
		done <- p
		return nil
	})
	ex := NewExtraction(mem, ext, 500, hm, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex.Go(ctx, "s1", "session_end")
	ex.Wait()
	hm.Wait()

	assert.Equal(t, 1, mem.mergeCount())
	p := <-done
	assert.Equal(t, 1, p.Data["facts"])
	assert.Equal(t, "session_end", p.Data["reason"])
}
