package cache

import (
	"context"
	"time"
)

// Entry is one cached value. Only the cache and its stores create entries.
type Entry struct {
	Key      string        `json:"key"`
	Value    interface{}   `json:"value"`
	StoredAt time.Time     `json:"storedAt"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.StoredAt.Add(e.TTL))
}

// Store is a cache backend. Implementations must make Get's
// read-check-expire sequence and Set's insert-or-overwrite atomic per key.
type Store interface {
	// Get returns the live entry for key, or nil. An expired entry is
	// deleted and reported as a miss.
	Get(ctx context.Context, key string, now time.Time) (*Entry, error)
	Set(ctx context.Context, entry Entry) error
	// Sweep deletes every entry expired at now and returns how many it removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Keys(ctx context.Context) ([]string, error)
	Name() string
}
