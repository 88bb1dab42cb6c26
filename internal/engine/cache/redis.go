package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// deleteIfUnchanged removes KEYS[1] only while it still holds ARGV[1], so a
// Set that lands after the read is never deleted with the stale envelope.
var deleteIfUnchanged = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps entries as JSON envelopes under a key prefix. Values come
// back JSON-decoded (maps, slices, float64), not as the original Go types.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

type envelope struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"storedAt"`
	TTLMs    int64           `json:"ttlMs"`
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (*Entry, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEnvelope(key, raw)
	if err != nil {
		return nil, err
	}
	if entry.Expired(now) {
		if _, err := s.deleteStale(ctx, s.prefix+key, raw); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return entry, nil
}

func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	payload, err := json.Marshal(envelope{
		Value:    value,
		StoredAt: entry.StoredAt,
		TTLMs:    entry.TTL.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, payload, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Sweep removes envelopes whose TTL has elapsed by the cache clock. Redis
// expires keys on its own clock as well, so this mostly matters when the two
// disagree.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, fullKey := range keys {
		raw, err := s.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis get: %w", err)
		}
		entry, err := decodeEnvelope(strings.TrimPrefix(fullKey, s.prefix), raw)
		if err != nil || entry.Expired(now) {
			n, delErr := s.deleteStale(ctx, fullKey, raw)
			if delErr != nil {
				return removed, delErr
			}
			removed += n
		}
	}
	return removed, nil
}

// deleteStale deletes fullKey if it still holds raw and reports how many keys
// went away.
func (s *RedisStore) deleteStale(ctx context.Context, fullKey string, raw []byte) (int, error) {
	n, err := deleteIfUnchanged.Run(ctx, s.client, []string{fullKey}, raw).Int()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	full, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(full))
	for i, k := range full {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) scan(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func decodeEnvelope(key string, raw []byte) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	var value interface{}
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &value); err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
	}
	return &Entry{
		Key:      key,
		Value:    value,
		StoredAt: env.StoredAt,
		TTL:      time.Duration(env.TTLMs) * time.Millisecond,
	}, nil
}
