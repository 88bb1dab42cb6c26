// Package engine assembles the query engine components from configuration.
package engine

import (
	"context"
	"fmt"
	"time"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/engine/classifier"
	"query-orchestrator/internal/engine/coordinator"
	"query-orchestrator/internal/engine/extractor"
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/engine/synthesizer"
	"query-orchestrator/pkg/registry"
)

// Backends are the collaborators the engine calls out to.
type Backends struct {
	Reasoning  coordinator.ReasoningExecutor
	Operations coordinator.ExternalOperation
	Store      cache.Store
}

type Engine struct {
	Orchestrator *orchestrator.Orchestrator
	Classifier   *classifier.Classifier
	Planner      *planner.Planner
	Cache        *cache.ResultCache
	logger       logger.Logger
}

// Build wires every engine component. A configured operation registry file
// overrides the default cache lifetimes.
func Build(cfg config.OrchestratorConfig, b Backends, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	store := b.Store
	if store == nil {
		store = cache.NewMemoryStore()
	}

	policy := cache.NewTTLPolicy()
	if cfg.OperationRegistryPath != "" {
		reg, err := registry.LoadRegistry(cfg.OperationRegistryPath)
		if err != nil {
			return nil, fmt.Errorf("load operation registry: %w", err)
		}
		if err := reg.Apply(policy); err != nil {
			return nil, fmt.Errorf("apply operation registry: %w", err)
		}
		log.Info("operation registry loaded", map[string]interface{}{
			"path":       cfg.OperationRegistryPath,
			"operations": len(reg.Operations),
		})
	}

	resultCache := cache.New(store, cache.WithPolicy(policy), cache.WithLogger(log))
	cls := classifier.New(extractor.New(),
		classifier.WithMaxQueryLength(cfg.MaxQueryLength),
		classifier.WithLogger(log),
	)
	pln := planner.New(planner.WithLogger(log))

	coordOpts := []coordinator.Option{coordinator.WithLogger(log)}
	if cfg.MaxConcurrency > 0 {
		coordOpts = append(coordOpts, coordinator.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.MaxExecutionTime > 0 {
		coordOpts = append(coordOpts, coordinator.WithMaxExecutionTime(config.GetDuration(cfg.MaxExecutionTime)))
	}
	coord := coordinator.New(b.Reasoning, b.Operations, resultCache, coordOpts...)

	orch := orchestrator.New(orchestrator.Config{
		DefaultCacheStrategy:  cfg.DefaultCacheStrategy,
		DefaultResponseFormat: cfg.DefaultResponseFormat,
		PrewarmTimeout:        config.GetDuration(cfg.PrewarmTimeout),
	}, orchestrator.Dependencies{
		Classifier:  cls,
		Planner:     pln,
		Coordinator: coord,
		Synthesizer: synthesizer.New(log),
		Cache:       resultCache,
		Operations:  b.Operations,
	}, log)

	return &Engine{
		Orchestrator: orch,
		Classifier:   cls,
		Planner:      pln,
		Cache:        resultCache,
		logger:       log,
	}, nil
}

// RunSweeper removes expired cache entries every interval until ctx ends.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := e.Cache.Sweep(ctx); removed > 0 {
				e.logger.Debug("cache swept", map[string]interface{}{"removed": removed})
			}
		}
	}
}

// Close waits for background pre-warm lookups.
func (e *Engine) Close() {
	e.Orchestrator.Wait()
}
