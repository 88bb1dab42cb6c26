package genai

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
)

func newTestClient(t *testing.T, url string, cfg Config) *Client {
	cfg.BaseURL = url
	return NewClient(cfg, logger.NewTestLogger(t))
}

func TestInvoke_SendsRoleAndPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer k-1", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "summarizer", req.Role)
		assert.Equal(t, "Summarize Austin", req.Prompt)
		assert.Equal(t, 512, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{"text": "Austin has great coffee.", "confidence": 0.9}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/", Config{APIKey: "k-1", MaxTokens: 512, Temperature: 0.3, Timeout: time.Second})
	out, err := client.Invoke(context.Background(), "summarizer", "Summarize Austin")

	require.NoError(t, err)
	assert.Equal(t, "Austin has great coffee.", out)
}

func TestInvoke_ResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected interface{}
	}{
		{name: "data field", body: `{"data": {"type": "FeatureCollection", "features": []}}`, expected: map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}}},
		{name: "other object", body: `{"answer": 42}`, expected: map[string]interface{}{"answer": 42.0}},
		{name: "not json", body: `plain words`, expected: "plain words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			out, err := newTestClient(t, server.URL, Config{Timeout: time.Second}).Invoke(context.Background(), "planner", "p")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestInvoke_RetriesThenFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, Config{Timeout: 5 * time.Second, MaxRetries: 2}).Invoke(context.Background(), "collector", "p")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeReasoningFailed, errors.CodeOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInvoke_RecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"text": "ok"}`))
	}))
	defer server.Close()

	out, err := newTestClient(t, server.URL, Config{Timeout: 5 * time.Second, MaxRetries: 1}).Invoke(context.Background(), "planner", "p")

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestInvoke_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestClient(t, server.URL, Config{Timeout: 50 * time.Millisecond}).Invoke(context.Background(), "map-formatter", "p")

	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, &errors.StandardError{Code: errors.ErrCodeReasoningTimeout}))
}
