package relay

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
)

type fakeMemory struct {
	mu     sync.Mutex
	turns  []domain.Turn
	facts  map[string]domain.Fact
	merges int
	err    error
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{facts: make(map[string]domain.Fact)}
}

func (m *fakeMemory) AppendTurn(_ context.Context, role domain.Role, text string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.turns = append(m.turns, domain.Turn{Role: role, Text: text, Timestamp: at})
	return nil
}

func (m *fakeMemory) RecentTurns(_ context.Context, limit int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	turns := m.turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (m *fakeMemory) ProfileFacts(context.Context) ([]domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	keys := make([]string, 0, len(m.facts))
	for k := range m.facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.Fact, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.facts[k])
	}
	return out, nil
}

func (m *fakeMemory) MergeFacts(_ context.Context, facts []domain.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.merges++
	for _, f := range facts {
		m.facts[f.Key()] = f
	}
	return nil
}

func (m *fakeMemory) LastTurnTime(context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	if len(m.turns) == 0 {
		return time.Time{}, false, nil
	}
	return m.turns[len(m.turns)-1].Timestamp, true, nil
}

func (m *fakeMemory) snapshot() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Turn(nil), m.turns...)
}

func (m *fakeMemory) mergeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merges
}

type fakeVectors struct {
	mu      sync.Mutex
	result  string
	err     error
	panics  string
	added   []string
	queries []string
}

func (v *fakeVectors) IndexAll(context.Context) (int, error) { return 0, nil }

func (v *fakeVectors) AddMemory(_ context.Context, role domain.Role, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.added = append(v.added, string(role)+": "+text)
	return nil
}

func (v *fakeVectors) Search(_ context.Context, query string, _ int) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries = append(v.queries, query)
	if v.panics != "" {
		panic(v.panics)
	}
	return v.result, v.err
}

// fakeKB keeps documents in memory and chunks one chunk per 1000 runes.
type fakeKB struct {
	mu     sync.Mutex
	docs   map[string]domain.Document
	result string
	err    error
	panics string
}

func newFakeKB() *fakeKB {
	return &fakeKB{docs: make(map[string]domain.Document)}
}

func (k *fakeKB) Store(_ context.Context, name, content, docType string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panics != "" {
		panic(k.panics)
	}
	if k.err != nil {
		return 0, k.err
	}
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}
	chunks := (len([]rune(content)) + 999) / 1000
	k.docs[name] = domain.Document{Name: name, Type: docType, Chunks: chunks}
	return chunks, nil
}

func (k *fakeKB) List(context.Context) ([]domain.Document, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	var out []domain.Document
	for _, d := range k.docs {
		out = append(out, d)
	}
	return out, nil
}

func (k *fakeKB) Delete(_ context.Context, name string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return 0, k.err
	}
	d := k.docs[name]
	delete(k.docs, name)
	return d.Chunks, nil
}

func (k *fakeKB) Search(context.Context, string, int) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panics != "" {
		panic(k.panics)
	}
	return k.result, k.err
}

type fakeVision struct {
	mu     sync.Mutex
	desc   string
	calls  int
	panics string
}

func (v *fakeVision) Describe(context.Context, string, string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.panics != "" {
		panic(v.panics)
	}
	return v.desc
}

type fakeExtractor struct {
	mu    sync.Mutex
	facts []domain.Fact
	err   error
	seen  []string
}

func (e *fakeExtractor) Extract(_ context.Context, conversation string) ([]domain.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, conversation)
	return e.facts, e.err
}

func (e *fakeExtractor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seen)
}

var errBoom = errors.New("boom")
