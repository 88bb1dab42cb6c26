package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/logger"
)

func TestHealth(t *testing.T) {
	mux := newMux(nil, logger.NewTestLogger(t))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]readinessCheck
		code     int
		status   string
		expected map[string]interface{}
	}{
		{
			name:     "all dependencies up",
			checks:   map[string]readinessCheck{"postgres": func(context.Context) error { return nil }},
			code:     http.StatusOK,
			status:   "ready",
			expected: map[string]interface{}{"postgres": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]readinessCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("redis ping failed") },
			},
			code:     http.StatusServiceUnavailable,
			status:   "not ready",
			expected: map[string]interface{}{"postgres": "ok", "redis": "redis ping failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMux(tt.checks, logger.NewTestLogger(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, tt.expected, body["checks"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(nil, logger.NewTestLogger(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
