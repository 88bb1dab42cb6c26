// Package coordinator executes a validated plan level by level against the
// reasoning executor and the external operations, routing every operation
// through the result cache.
package coordinator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/models"
)

const (
	DefaultMaxConcurrency   = 4
	DefaultMaxExecutionTime = 30 * time.Second
)

// ReasoningExecutor runs one reasoning step for a role. The returned value may
// be text, JSON text or an already decoded structure.
type ReasoningExecutor interface {
	Invoke(ctx context.Context, role, prompt string) (interface{}, error)
}

// ExternalOperation performs a named data-gathering call.
type ExternalOperation interface {
	Call(ctx context.Context, operationID string, params map[string]interface{}) (interface{}, error)
}

// Request carries what phases need to know about the query being executed.
type Request struct {
	RequestID string
	Analysis  *models.QueryAnalysis
	Cache     cache.FetchOptions
	// MaxExecutionTime overrides the coordinator budget when positive.
	MaxExecutionTime time.Duration
}

// ExecutionResult is the outcome of one plan execution.
type ExecutionResult struct {
	PhaseResults *models.PhaseResults
	// FinalOutput is the output of the last usable phase in plan order.
	FinalOutput    models.ReasoningOutput
	DurationMs     int64
	Success        bool
	Errors         []models.PhaseError
	ParallelPhases int
	CacheHits      int
	Truncated      bool
}

type Coordinator struct {
	reasoning        ReasoningExecutor
	operations       ExternalOperation
	cache            *cache.ResultCache
	maxConcurrency   int
	maxExecutionTime time.Duration
	sequential       bool
	logger           logger.Logger
}

type Option func(*Coordinator)

func WithMaxConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

func WithMaxExecutionTime(d time.Duration) Option {
	return func(c *Coordinator) { c.maxExecutionTime = d }
}

// WithSequential runs every phase in declaration order on the calling
// goroutine.
func WithSequential(sequential bool) Option {
	return func(c *Coordinator) { c.sequential = sequential }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) { c.logger = log }
}

func New(reasoning ReasoningExecutor, operations ExternalOperation, resultCache *cache.ResultCache, opts ...Option) *Coordinator {
	c := &Coordinator{
		reasoning:        reasoning,
		operations:       operations,
		cache:            resultCache,
		maxConcurrency:   DefaultMaxConcurrency,
		maxExecutionTime: DefaultMaxExecutionTime,
		logger:           logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the plan. Levels are joined before the next one starts. The
// first level always runs; once the budget is spent no further level is
// launched and phases already running are allowed to finish.
func (c *Coordinator) Execute(ctx context.Context, plan *models.ExecutionPlan, req Request) *ExecutionResult {
	start := time.Now()
	budget := c.maxExecutionTime
	if req.MaxExecutionTime > 0 {
		budget = req.MaxExecutionTime
	}

	log := c.logger.WithFields(map[string]interface{}{"requestId": req.RequestID})
	results := models.NewPhaseResults()
	res := &ExecutionResult{PhaseResults: results, Success: true}

	var truncated map[string]bool
	levels := plan.Levels()
	for i, level := range levels {
		expired := i > 0 && budget > 0 && time.Since(start) >= budget
		if expired || ctx.Err() != nil {
			truncated = c.truncate(levels[i:], results, log)
			res.Truncated = true
			break
		}
		res.ParallelPhases += c.runLevel(ctx, level, req, results, log)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	collect(plan, res, truncated)
	log.Info("plan executed", map[string]interface{}{
		"phases":         len(plan.Phases),
		"success":        res.Success,
		"truncated":      res.Truncated,
		"parallelPhases": res.ParallelPhases,
		"cacheHits":      res.CacheHits,
		"durationMs":     res.DurationMs,
	})
	return res
}

// runLevel executes one topological level and returns how many phases were
// dispatched concurrently.
func (c *Coordinator) runLevel(ctx context.Context, level []models.Phase, req Request, results *models.PhaseResults, log logger.Logger) int {
	var parallel, serial []models.Phase
	for _, phase := range level {
		if phase.Parallel && !c.sequential {
			parallel = append(parallel, phase)
		} else {
			serial = append(serial, phase)
		}
	}
	if len(parallel) == 1 {
		serial = append(serial, parallel[0])
		parallel = nil
	}

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)
	for _, phase := range parallel {
		phase := phase
		g.Go(func() error {
			results.Put(c.runPhase(ctx, phase, req, results, log))
			return nil
		})
	}
	for _, phase := range serial {
		results.Put(c.runPhase(ctx, phase, req, results, log))
	}
	_ = g.Wait()

	return len(parallel)
}

func (c *Coordinator) truncate(levels [][]models.Phase, results *models.PhaseResults, log logger.Logger) map[string]bool {
	names := make(map[string]bool)
	for _, level := range levels {
		for _, phase := range level {
			names[phase.Name] = true
			results.Put(&models.PhaseResult{
				Name:     phase.Name,
				Executor: phase.Executor,
				Skipped:  true,
				Errors: []models.PhaseError{{
					Phase:   phase.Name,
					Code:    string(errors.ErrCodePhaseSkipped),
					Message: "execution budget exhausted before phase started",
				}},
			})
			metrics.PhaseFailures.WithLabelValues(phase.Name, "truncated").Inc()
			log.Warn("phase not started, budget exhausted", map[string]interface{}{"phase": phase.Name})
		}
	}
	return names
}

// collect folds phase results into the execution summary in plan order. A
// phase skipped for lack of dependencies fails the execution; one left
// unstarted by the budget does not.
func collect(plan *models.ExecutionPlan, res *ExecutionResult, truncated map[string]bool) {
	usable := 0
	for _, phase := range plan.Phases {
		r, ok := res.PhaseResults.Get(phase.Name)
		if !ok {
			continue
		}
		res.Errors = append(res.Errors, r.Errors...)
		res.CacheHits += r.CacheHits
		if r.Skipped && !truncated[phase.Name] {
			res.Success = false
		}
		if r.Usable() {
			usable++
			res.FinalOutput = r.Output
		}
	}
	if usable == 0 {
		res.Success = false
	}
}
