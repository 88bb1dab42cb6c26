package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
apis:
  genai:
    base_url: http://genai.local
`

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "query-orchestrator", cfg.App.Name)
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 30000, cfg.Orchestrator.MaxExecutionTime)
	assert.Equal(t, "standard", cfg.Orchestrator.DefaultCacheStrategy)
	assert.Equal(t, "summary", cfg.Orchestrator.DefaultResponseFormat)
	assert.Equal(t, CacheBackendMemory, cfg.Orchestrator.CacheBackend)
	assert.Equal(t, "places", cfg.Database.Elasticsearch.PlacesIndex)
	assert.Equal(t, 10000, cfg.APIs.Weather.Timeout)
	assert.Equal(t, 60000, cfg.APIs.GenAI.Timeout)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_WEATHER_URL", "http://weather.local")
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
  weather:
    base_url: ${TEST_WEATHER_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://weather.local", cfg.APIs.Weather.BaseURL)
	assert.True(t, cfg.APIs.Weather.Enabled())
	assert.False(t, cfg.APIs.Events.Enabled())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "apis:\n  genai:\n    base_url: http://x\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "redis backend without address",
			body:    minimalConfig + "orchestrator:\n  cache_backend: redis\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "unknown backend",
			body:    minimalConfig + "orchestrator:\n  cache_backend: disk\n",
			wantErr: "cache_backend",
		},
		{
			name:    "unknown strategy",
			body:    minimalConfig + "orchestrator:\n  default_cache_strategy: eager\n",
			wantErr: "default_cache_strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"orchestrate-query": {Enabled: false, MaxJobsActive: 2, Timeout: 1000, MaxRetries: 1},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "orchestrate-query"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "orchestrate-query").MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "unknown")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
}
