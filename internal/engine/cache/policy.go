package cache

import (
	"sync"
	"time"
)

// DefaultTTL applies to operations without an explicit policy.
const DefaultTTL = 5 * time.Minute

var defaultTTLs = map[string]time.Duration{
	"ip-geolocation":  24 * time.Hour,
	"geocode":         24 * time.Hour,
	"photos":          6 * time.Hour,
	"place-search":    time.Hour,
	"events":          30 * time.Minute,
	"weather":         10 * time.Minute,
	"aggregate-stats": 0,
}

// TTLPolicy maps operation IDs to cache lifetimes. A zero TTL means the
// operation is never cached.
type TTLPolicy struct {
	mu       sync.RWMutex
	ttls     map[string]time.Duration
	fallback time.Duration
}

func NewTTLPolicy() *TTLPolicy {
	p := &TTLPolicy{ttls: make(map[string]time.Duration, len(defaultTTLs)), fallback: DefaultTTL}
	for op, ttl := range defaultTTLs {
		p.ttls[op] = ttl
	}
	return p
}

func (p *TTLPolicy) TTL(operationID string) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if ttl, ok := p.ttls[operationID]; ok {
		return ttl
	}
	return p.fallback
}

// Override sets the TTL for one operation. A negative ttl is treated as zero.
func (p *TTLPolicy) Override(operationID string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	p.mu.Lock()
	p.ttls[operationID] = ttl
	p.mu.Unlock()
}

func (p *TTLPolicy) Cacheable(operationID string) bool {
	return p.TTL(operationID) > 0
}
