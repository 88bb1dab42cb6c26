// Package cache is the single owner of cached external-operation results.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/sync/singleflight"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
)

// Stats describes the live contents of the cache.
type Stats struct {
	Size    int      `json:"size"`
	Entries []string `json:"entries"`
	Backend string   `json:"backend"`
}

// FetchOptions adjusts one Fetch call.
type FetchOptions struct {
	// Bypass skips the cache entirely: no read, no write.
	Bypass bool
	// TTLScale multiplies the operation's TTL. Zero means 1.
	TTLScale float64
}

// ResultCache wraps a Store with TTL policy, key derivation and fill
// deduplication. Store failures are logged and treated as misses.
type ResultCache struct {
	store  Store
	policy *TTLPolicy
	now    func() time.Time
	group  singleflight.Group
	logger logger.Logger
}

type Option func(*ResultCache)

func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func WithPolicy(p *TTLPolicy) Option {
	return func(c *ResultCache) { c.policy = p }
}

func WithLogger(log logger.Logger) Option {
	return func(c *ResultCache) { c.logger = log }
}

func New(store Store, opts ...Option) *ResultCache {
	c := &ResultCache{
		store:  store,
		policy: NewTTLPolicy(),
		now:    time.Now,
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) Policy() *TTLPolicy {
	return c.policy
}

// Key derives a stable key from an operation ID and its parameters. Map keys
// are serialized in sorted order, so parameter order never changes the key.
func Key(operationID string, params map[string]interface{}) string {
	canonical, err := json.Marshal(params)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", params))
	}
	h := xxhash.NewS64(0)
	h.Write([]byte(operationID))
	h.Write([]byte{0})
	h.Write(canonical)
	return operationID + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the live value for key. An expired entry is removed and
// reported as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (interface{}, bool) {
	entry, err := c.store.Get(ctx, key, c.now())
	if err != nil {
		c.storeError("get", key, err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	err := c.store.Set(ctx, Entry{Key: key, Value: value, StoredAt: c.now(), TTL: ttl})
	if err != nil {
		c.storeError("set", key, err)
	}
}

// Sweep removes all expired entries and returns the number removed.
func (c *ResultCache) Sweep(ctx context.Context) int {
	removed, err := c.store.Sweep(ctx, c.now())
	if err != nil {
		c.storeError("sweep", "", err)
	}
	if removed > 0 {
		metrics.CacheSweptEntries.Add(float64(removed))
		c.logger.Debug("cache swept", map[string]interface{}{"removed": removed})
	}
	c.Stats(ctx)
	return removed
}

// Stats lists the keys the backend currently holds. Entries past their TTL
// that have not been read or swept yet are included.
func (c *ResultCache) Stats(ctx context.Context) Stats {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		c.storeError("stats", "", err)
		keys = []string{}
	}
	metrics.CacheEntries.WithLabelValues(c.store.Name()).Set(float64(len(keys)))
	return Stats{Size: len(keys), Entries: keys, Backend: c.store.Name()}
}

// Fetch returns the cached value for (operationID, params) or computes it
// with fn. Concurrent misses for the same key share one fn call. Operations
// whose TTL is zero, and calls with Bypass set, always run fn and never
// touch the cache.
func (c *ResultCache) Fetch(
	ctx context.Context,
	operationID string,
	params map[string]interface{},
	opts FetchOptions,
	fn func(context.Context) (interface{}, error),
) (value interface{}, hit bool, err error) {
	ttl := c.scaledTTL(operationID, opts.TTLScale)
	if opts.Bypass || ttl <= 0 {
		value, err = fn(ctx)
		return value, false, err
	}

	key := Key(operationID, params)
	if v, ok := c.Get(ctx, key); ok {
		metrics.CacheHits.WithLabelValues(operationID).Inc()
		return v, true, nil
	}
	metrics.CacheMisses.WithLabelValues(operationID).Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, ok := c.Get(ctx, key); ok {
			return cached, nil
		}
		fresh, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (c *ResultCache) scaledTTL(operationID string, scale float64) time.Duration {
	ttl := c.policy.TTL(operationID)
	if scale > 0 {
		ttl = time.Duration(float64(ttl) * scale)
	}
	return ttl
}

func (c *ResultCache) storeError(op, key string, err error) {
	cacheErr := errors.NewCacheError(op, err)
	metrics.CacheErrors.WithLabelValues(c.store.Name(), op).Inc()
	c.logger.Warn("cache backend error treated as miss", map[string]interface{}{
		"backend":   c.store.Name(),
		"op":        op,
		"key":       key,
		"errorCode": string(cacheErr.Code),
		"error":     err.Error(),
	})
}
