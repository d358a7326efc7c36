package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// RedisMemoryStore keeps the turn log in a Redis list and the profile in a
// hash keyed by fact attribute.
type RedisMemoryStore struct {
	rdb    *redis.Client
	prefix string
}

// OpenRedis connects to url and verifies the connection.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisMemoryStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisMemoryStore(rdb, prefix), nil
}

// NewRedisMemoryStore wraps an existing client.
func NewRedisMemoryStore(rdb *redis.Client, prefix string) *RedisMemoryStore {
	if prefix == "" {
		prefix = "voicerelay"
	}
	return &RedisMemoryStore{rdb: rdb, prefix: prefix}
}

// Close closes the underlying client.
func (r *RedisMemoryStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisMemoryStore) turnsKey() string   { return r.prefix + ":turns" }
func (r *RedisMemoryStore) profileKey() string { return r.prefix + ":profile" }

// AppendTurn pushes one utterance onto the log.
func (r *RedisMemoryStore) AppendTurn(ctx context.Context, role domain.Role, text string, at time.Time) error {
	if !role.Valid() {
		return fmt.Errorf("append turn: invalid role %q", role)
	}
	data, err := json.Marshal(domain.Turn{Role: role, Text: text, Timestamp: at.UTC()})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.turnsKey(), data).Err(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest limit turns, oldest first.
func (r *RedisMemoryStore) RecentTurns(ctx context.Context, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.turnRange(ctx, int64(-limit), -1)
}

// AllTurns returns the whole log, oldest first.
func (r *RedisMemoryStore) AllTurns(ctx context.Context) ([]domain.Turn, error) {
	return r.turnRange(ctx, 0, -1)
}

func (r *RedisMemoryStore) turnRange(ctx context.Context, start, stop int64) ([]domain.Turn, error) {
	raw, err := r.rdb.LRange(ctx, r.turnsKey(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	turns := make([]domain.Turn, 0, len(raw))
	for _, item := range raw {
		var t domain.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// LastTurnTime reports the timestamp of the list tail.
func (r *RedisMemoryStore) LastTurnTime(ctx context.Context) (time.Time, bool, error) {
	raw, err := r.rdb.LIndex(ctx, r.turnsKey(), -1).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last turn: %w", err)
	}
	var t domain.Turn
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return time.Time{}, false, fmt.Errorf("last turn: %w", err)
	}
	return t.Timestamp, !t.Timestamp.IsZero(), nil
}

// ProfileFacts returns every stored fact ordered by attribute.
func (r *RedisMemoryStore) ProfileFacts(ctx context.Context) ([]domain.Fact, error) {
	raw, err := r.rdb.HGetAll(ctx, r.profileKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("profile facts: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	facts := make([]domain.Fact, 0, len(keys))
	for _, k := range keys {
		var f domain.Fact
		if err := json.Unmarshal([]byte(raw[k]), &f); err != nil {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// MergeFacts overwrites hash fields keyed by lower-cased attribute.
func (r *RedisMemoryStore) MergeFacts(ctx context.Context, facts []domain.Fact) error {
	values := make(map[string]any)
	for _, f := range facts {
		key := f.Key()
		if key == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		f.Attribute = strings.TrimSpace(f.Attribute)
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("merge fact %q: %w", key, err)
		}
		values[key] = data
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.rdb.HSet(ctx, r.profileKey(), values).Err(); err != nil {
		return fmt.Errorf("merge facts: %w", err)
	}
	return nil
}
