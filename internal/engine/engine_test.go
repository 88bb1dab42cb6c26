package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/engine/planner"
)

type echoReasoner struct{}

func (echoReasoner) Invoke(_ context.Context, role, _ string) (interface{}, error) {
	if role == planner.RoleMapFormatter {
		return `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[-97.7431,30.2672]},"properties":{"name":"Austin"}}]}`, nil
	}
	return "Austin has plenty of coffee shops.", nil
}

type staticOperations struct{}

func (staticOperations) Call(_ context.Context, operationID string, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"operation": operationID}, nil
}

func TestBuild_AnswersQueries(t *testing.T) {
	e, err := Build(config.OrchestratorConfig{MaxConcurrency: 2, MaxExecutionTime: 5000}, Backends{
		Reasoning:  echoReasoner{},
		Operations: staticOperations{},
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	resp, err := e.Orchestrator.Handle(context.Background(), orchestrator.Request{Query: "Find coffee shops in Austin"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.GeoCollection.Features)
	assert.NotEmpty(t, resp.SummaryText)
}

func TestBuild_AppliesOperationRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"operations": [
		{"id": "weather", "ttl": "2m", "cacheable": true},
		{"id": "geocode", "ttl": "1h", "cacheable": false}
	]}`), 0o600))

	e, err := Build(config.OrchestratorConfig{OperationRegistryPath: path}, Backends{Reasoning: echoReasoner{}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, e.Cache.Policy().TTL("weather"))
	assert.False(t, e.Cache.Policy().Cacheable("geocode"))
	assert.Equal(t, cache.DefaultTTL, e.Cache.Policy().TTL("unlisted"))
}

func TestBuild_BadRegistryPath(t *testing.T) {
	_, err := Build(config.OrchestratorConfig{OperationRegistryPath: filepath.Join(t.TempDir(), "missing.json")}, Backends{}, nil)
	assert.Error(t, err)
}

func TestRunSweeper_RemovesExpiredEntries(t *testing.T) {
	store := cache.NewMemoryStore()
	e, err := Build(config.OrchestratorConfig{}, Backends{Reasoning: echoReasoner{}, Store: store}, logger.NewTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	e.Cache.Set(ctx, "weather:1", "sunny", 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		e.RunSweeper(sweepCtx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		keys, err := store.Keys(ctx)
		return err == nil && len(keys) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
