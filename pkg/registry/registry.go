package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

var ErrInvalidRegistry = errors.New("invalid operation registry")

// TTLSetter receives the lifetimes a registry declares.
type TTLSetter interface {
	Override(operationID string, ttl time.Duration)
}

func LoadRegistry(path string) (*OperationRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// SaveRegistry validates reg and writes it sorted by operation ID.
func SaveRegistry(path string, reg *OperationRegistry) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	sort.Slice(reg.Operations, func(i, j int) bool { return reg.Operations[i].ID < reg.Operations[j].ID })
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

func Parse(data []byte) (*OperationRegistry, error) {
	var reg OperationRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *OperationRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Operations))
	for i, op := range r.Operations {
		if op.ID == "" {
			return fmt.Errorf("%w: operation %d has no id", ErrInvalidRegistry, i)
		}
		if seen[op.ID] {
			return fmt.Errorf("%w: duplicate operation %q", ErrInvalidRegistry, op.ID)
		}
		seen[op.ID] = true
		ttl, err := op.Duration()
		if err != nil {
			return err
		}
		if op.Cacheable && ttl <= 0 {
			return fmt.Errorf("%w: cacheable operation %q needs a positive ttl", ErrInvalidRegistry, op.ID)
		}
	}
	return nil
}

func (r *OperationRegistry) Find(id string) (*Operation, bool) {
	for i := range r.Operations {
		if r.Operations[i].ID == id {
			return &r.Operations[i], true
		}
	}
	return nil, false
}

// Upsert replaces the operation with the same ID or appends op.
func (r *OperationRegistry) Upsert(op Operation) {
	if existing, ok := r.Find(op.ID); ok {
		*existing = op
		return
	}
	r.Operations = append(r.Operations, op)
}

// Duration parses TTL. An empty TTL is zero.
func (op Operation) Duration() (time.Duration, error) {
	if op.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(op.TTL)
	if err != nil {
		return 0, fmt.Errorf("%w: operation %q ttl: %v", ErrInvalidRegistry, op.ID, err)
	}
	return ttl, nil
}

// Apply pushes every declared lifetime into policy. Operations that are not
// cacheable get a zero TTL.
func (r *OperationRegistry) Apply(policy TTLSetter) error {
	for _, op := range r.Operations {
		ttl, err := op.Duration()
		if err != nil {
			return err
		}
		if !op.Cacheable {
			ttl = 0
		}
		policy.Override(op.ID, ttl)
	}
	return nil
}
