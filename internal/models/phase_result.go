package models

import (
	"sort"
	"sync"
)

// PhaseError records a failure against a single phase.
type PhaseError struct {
	Phase     string `json:"phase"`
	Operation string `json:"operation,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// PhaseResult is the output of one phase for the lifetime of a request.
type PhaseResult struct {
	Name       string                 `json:"name"`
	Executor   string                 `json:"executor"`
	Output     ReasoningOutput        `json:"output"`
	Operations map[string]interface{} `json:"operations,omitempty"`
	Errors     []PhaseError           `json:"errors,omitempty"`
	Failed     bool                   `json:"failed"`
	Skipped    bool                   `json:"skipped"`
	CacheHits  int                    `json:"cacheHits"`
	DurationMs int64                  `json:"durationMs"`
}

// Usable reports whether dependents and synthesis may read this result.
func (r *PhaseResult) Usable() bool {
	return r != nil && !r.Failed && !r.Skipped
}

// PhaseResults is an append-only map keyed by phase name. Concurrent phases
// write into it, so dependents must read by name.
type PhaseResults struct {
	mu      sync.RWMutex
	results map[string]*PhaseResult
	order   []string
}

func NewPhaseResults() *PhaseResults {
	return &PhaseResults{results: make(map[string]*PhaseResult)}
}

// Put stores a result. A second write for the same phase is ignored.
func (p *PhaseResults) Put(r *PhaseResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.results[r.Name]; exists {
		return false
	}
	p.results[r.Name] = r
	p.order = append(p.order, r.Name)
	return true
}

func (p *PhaseResults) Get(name string) (*PhaseResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[name]
	return r, ok
}

func (p *PhaseResults) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.results)
}

// Names returns phase names sorted alphabetically.
func (p *PhaseResults) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.results))
	for n := range p.results {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the map for read-only consumers.
func (p *PhaseResults) Snapshot() map[string]*PhaseResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*PhaseResult, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}
