package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// extractionTimeout bounds one background extraction pass.
const extractionTimeout = 2 * time.Minute

// Extraction distils profile facts from the recent turn log. Passes may
// overlap; merging is idempotent.
type Extraction struct {
	memory    domain.MemoryStore
	extractor domain.FactExtractor
	limit     int
	hooks     hooks.Emitter
	log       *logging.Logger
	wg        sync.WaitGroup
}

// NewExtraction creates an extraction runner. A nil extractor disables it.
func NewExtraction(memory domain.MemoryStore, extractor domain.FactExtractor, limit int, em hooks.Emitter, log *logging.Logger) *Extraction {
	if limit <= 0 {
		limit = 500
	}
	return &Extraction{memory: memory, extractor: extractor, limit: limit, hooks: em, log: log.Sub("extraction")}
}

// Run performs one pass and returns the number of facts merged.
func (e *Extraction) Run(ctx context.Context) (int, error) {
	if e.extractor == nil {
		return 0, nil
	}
	turns, err := e.memory.RecentTurns(ctx, e.limit)
	if err != nil {
		return 0, fmt.Errorf("loading turns: %w", err)
	}
	if len(turns) == 0 {
		return 0, nil
	}

	facts, err := e.extractor.Extract(ctx, domain.FormatTurns(turns))
	if err != nil {
		return 0, fmt.Errorf("extracting facts: %w", err)
	}
	if len(facts) == 0 {
		return 0, nil
	}
	if err := e.memory.MergeFacts(ctx, facts); err != nil {
		return 0, fmt.Errorf("merging facts: %w", err)
	}
	return len(facts), nil
}

// Go starts a detached pass. It survives cancellation of ctx; failures are
// only logged.
func (e *Extraction) Go(ctx context.Context, sessionID, reason string) {
	if e.extractor == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), extractionTimeout)
		defer cancel()

		n, err := e.Run(ctx)
		if err != nil {
			e.log.Warn().Err(err).Str("session", sessionID).Str("reason", reason).Msg("fact extraction failed")
			return
		}
		e.log.Info().Str("session", sessionID).Str("reason", reason).Int("facts", n).Msg("fact extraction finished")
		if e.hooks != nil && n > 0 {
			e.hooks.EmitAsync(ctx, hooks.Payload{
				Event:     hooks.EventFactsExtracted,
				SessionID: sessionID,
				Data:      map[string]any{"facts": n, "reason": reason},
			})
		}
	}()
}

// Wait blocks until every pass started by Go has finished.
func (e *Extraction) Wait() {
	e.wg.Wait()
}

// Recorder persists one session's transcripts and schedules extraction.
// It is owned by a single goroutine.
type Recorder struct {
	sessionID  string
	memory     domain.MemoryStore
	vectors    domain.VectorIndex
	extraction *Extraction
	every      int
	hooks      hooks.Emitter
	log        *logging.Logger
	now        func() time.Time

	userTurns int
}

// Record appends a turn to the log and, best-effort, to the vector index.
// Every every-th user turn starts a background extraction.
func (r *Recorder) Record(ctx context.Context, role domain.Role, text string) {
	if err := r.memory.AppendTurn(ctx, role, text, r.now()); err != nil {
		r.log.Warn().Err(err).Str("role", string(role)).Msg("saving turn failed")
	}
	if r.vectors != nil {
		if err := r.vectors.AddMemory(ctx, role, text); err != nil {
			r.log.Debug().Err(err).Msg("indexing turn failed")
		}
	}
	if r.hooks != nil {
		r.hooks.EmitAsync(ctx, hooks.Payload{
			Event:     hooks.EventTurnRecorded,
			SessionID: r.sessionID,
			Data:      map[string]any{"role": string(role), "chars": len(text)},
		})
	}

	if role != domain.RoleUser {
		return
	}
	r.userTurns++
	if r.every > 0 && r.userTurns%r.every == 0 {
		r.extraction.Go(ctx, r.sessionID, "periodic")
	}
}

// UserTurns reports how many user turns were recorded.
func (r *Recorder) UserTurns() int {
	return r.userTurns
}

// Finish starts the end-of-session extraction.
func (r *Recorder) Finish(ctx context.Context) {
	r.extraction.Go(ctx, r.sessionID, "session_end")
}
