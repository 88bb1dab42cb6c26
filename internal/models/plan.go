package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPlan          = errors.New("plan has no phases")
	ErrDuplicatePhase     = errors.New("duplicate phase name")
	ErrUnknownDependency  = errors.New("dependency references unknown phase")
	ErrForwardDependency  = errors.New("dependency references a later phase")
	ErrCircularDependency = errors.New("circular dependency detected")
)

// Phase is one unit of work in an execution plan.
type Phase struct {
	Name         string   `json:"name"`
	Executor     string   `json:"executor"`
	Capabilities []string `json:"capabilities"`
	Dependencies []string `json:"dependencies"`
	Parallel     bool     `json:"parallel"`
}

// ExecutionPlan is built fresh per request and never mutated during execution.
// Levels holds the topological levels computed at construction; every phase in
// level n depends only on phases in levels < n.
type ExecutionPlan struct {
	Phases              []Phase `json:"phases"`
	EstimatedDurationMs int     `json:"estimatedDurationMs"`
	Parallelizable      bool    `json:"parallelizable"`

	levels [][]int
	index  map[string]int
}

// NewExecutionPlan validates the phase graph and precomputes its levels.
func NewExecutionPlan(phases []Phase, estimatedDurationMs int) (*ExecutionPlan, error) {
	if len(phases) == 0 {
		return nil, ErrEmptyPlan
	}

	index := make(map[string]int, len(phases))
	deps := make(map[string][]string, len(phases))
	names := make([]string, 0, len(phases))
	for i, p := range phases {
		if p.Name == "" {
			return nil, fmt.Errorf("phase %d has no name", i)
		}
		if _, dup := index[p.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePhase, p.Name)
		}
		for _, d := range p.Dependencies {
			j, ok := index[d]
			switch {
			case d == p.Name:
				return nil, fmt.Errorf("%w: %s depends on itself", ErrCircularDependency, p.Name)
			case !ok && !containsPhase(phases, d):
				return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, p.Name, d)
			case !ok:
				return nil, fmt.Errorf("%w: %s -> %s", ErrForwardDependency, p.Name, d)
			case j >= i:
				return nil, fmt.Errorf("%w: %s -> %s", ErrForwardDependency, p.Name, d)
			}
		}
		index[p.Name] = i
		names = append(names, p.Name)
		deps[p.Name] = p.Dependencies
	}

	if _, err := topoSort(names, deps); err != nil {
		return nil, err
	}

	plan := &ExecutionPlan{
		Phases:              clonePhases(phases),
		EstimatedDurationMs: estimatedDurationMs,
		index:               index,
	}
	plan.levels = computeLevels(plan.Phases, index)
	for _, lvl := range plan.levels {
		if len(lvl) > 1 {
			plan.Parallelizable = true
		}
	}
	return plan, nil
}

// Levels returns the phases grouped by topological level.
func (p *ExecutionPlan) Levels() [][]Phase {
	out := make([][]Phase, len(p.levels))
	for i, lvl := range p.levels {
		for _, idx := range lvl {
			out[i] = append(out[i], p.Phases[idx])
		}
	}
	return out
}

func (p *ExecutionPlan) Phase(name string) (Phase, bool) {
	i, ok := p.index[name]
	if !ok {
		return Phase{}, false
	}
	return p.Phases[i], true
}

func (p *ExecutionPlan) PhaseNames() []string {
	names := make([]string, len(p.Phases))
	for i, ph := range p.Phases {
		names[i] = ph.Name
	}
	return names
}

func computeLevels(phases []Phase, index map[string]int) [][]int {
	level := make([]int, len(phases))
	maxLevel := 0
	for i, p := range phases {
		for _, d := range p.Dependencies {
			if l := level[index[d]] + 1; l > level[i] {
				level[i] = l
			}
		}
		if level[i] > maxLevel {
			maxLevel = level[i]
		}
	}
	levels := make([][]int, maxLevel+1)
	for i := range phases {
		levels[level[i]] = append(levels[level[i]], i)
	}
	return levels
}

// topoSort is Kahn's algorithm; it reports the nodes left over when a cycle exists.
func topoSort(names []string, edges map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(names))
	forward := make(map[string][]string)
	for _, n := range names {
		inDegree[n] = 0
	}
	for node, ds := range edges {
		for _, d := range ds {
			inDegree[node]++
			forward[d] = append(forward[d], node)
		}
	}

	var queue, sorted []string
	for _, n := range names {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)
		for _, dependent := range forward[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(names) {
		var stuck []string
		for _, n := range names {
			if inDegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(stuck, ", "))
	}
	return sorted, nil
}

func containsPhase(phases []Phase, name string) bool {
	for _, p := range phases {
		if p.Name == name {
			return true
		}
	}
	return false
}

func clonePhases(phases []Phase) []Phase {
	out := make([]Phase, len(phases))
	for i, p := range phases {
		out[i] = Phase{
			Name:         p.Name,
			Executor:     p.Executor,
			Capabilities: append([]string{}, p.Capabilities...),
			Dependencies: append([]string{}, p.Dependencies...),
			Parallel:     p.Parallel,
		}
	}
	return out
}
