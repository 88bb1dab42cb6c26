package orchestratequery

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/camunda"
	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/models"
)

// ==========================
// Test doubles
// ==========================

type fakeEngine struct {
	resp *models.SynthesizedResponse
	err  error
	got  orchestrator.Request
}

func (f *fakeEngine) Handle(_ context.Context, req orchestrator.Request) (*models.SynthesizedResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakePlaces struct {
	features []models.Feature
	err      error
}

func (f *fakePlaces) UpsertFeatures(_ context.Context, features []models.Feature) (int, error) {
	f.features = features
	if f.err != nil {
		return 0, f.err
	}
	return len(features), nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, MaxJobsActive: 1, PersistPlaces: true}
}

func successResponse() *models.SynthesizedResponse {
	return &models.SynthesizedResponse{
		RequestID: "req-1",
		Success:   true,
		QueryType: models.QueryTypeSearchOnly,
		GeoCollection: models.GeoCollection{
			Type: "FeatureCollection",
			Features: []models.Feature{
				models.NewPointFeature(40.758, -73.9855, map[string]interface{}{"id": "p-1", "name": "Joe's Pizza"}),
			},
		},
	}
}

// ==========================
// Input parsing
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
		validate  func(t *testing.T, in *Input)
	}{
		{
			name:      "full request",
			variables: `{"query": "coffee in Austin", "sessionId": "s-1", "preferences": {"cacheStrategy": "aggressive", "maxExecutionTimeMs": 2000}, "context": {"userLocation": {"lat": 30.2, "lon": -97.7}}}`,
			validate: func(t *testing.T, in *Input) {
				assert.Equal(t, "coffee in Austin", in.Query)
				assert.Equal(t, "s-1", in.SessionID)
				assert.Equal(t, "aggressive", in.Preferences.CacheStrategy)
				assert.Equal(t, 2000, in.Preferences.MaxExecutionTimeMs)
				require.NotNil(t, in.Context.UserLocation)
				assert.Equal(t, "30.2,-97.7", in.Context.UserLocation.Label())
			},
		},
		{name: "not json", variables: `{`, wantErr: true},
		{name: "missing query", variables: `{"sessionId": "s-1"}`, wantErr: true},
		{name: "empty query", variables: `{"query": ""}`, wantErr: true},
		{name: "unknown cache strategy", variables: `{"query": "x", "preferences": {"cacheStrategy": "forever"}}`, wantErr: true},
		{name: "latitude out of range", variables: `{"query": "x", "context": {"userLocation": {"lat": 91, "lon": 0}}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := parseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, in)
		})
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_PersistsPlaces(t *testing.T) {
	engine := &fakeEngine{resp: successResponse()}
	places := &fakePlaces{}
	h := NewHandler(createTestConfig(), engine, places, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "Find restaurants near Times Square"})

	require.NoError(t, err)
	assert.Equal(t, "Find restaurants near Times Square", engine.got.Query)
	assert.Same(t, engine.resp, out.Response)
	assert.Equal(t, 1, out.PlacesStored)
	assert.Len(t, places.features, 1)
}

func TestHandler_Execute_PlaceStoreFailureIsNotFatal(t *testing.T) {
	places := &fakePlaces{err: errors.NewPlaceStoreError(stdErrors.New("read-only"))}
	h := NewHandler(createTestConfig(), &fakeEngine{resp: successResponse()}, places, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.True(t, out.Response.Success)
	assert.Zero(t, out.PlacesStored)
}

func TestHandler_Execute_SkipsPersistenceWhenDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.PersistPlaces = false
	places := &fakePlaces{}
	h := NewHandler(cfg, &fakeEngine{resp: successResponse()}, places, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.Nil(t, places.features)
}

func TestHandler_Execute_DegradedResponseCompletes(t *testing.T) {
	resp := successResponse()
	resp.Success = false
	resp.GeoCollection.Features = []models.Feature{}
	places := &fakePlaces{}
	h := NewHandler(createTestConfig(), &fakeEngine{resp: resp}, places, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.False(t, out.Response.Success)
	assert.Nil(t, places.features)
}

func TestHandler_Execute_EngineErrorPropagates(t *testing.T) {
	engineErr := errors.NewClassificationError("empty query")
	h := NewHandler(createTestConfig(), &fakeEngine{
		resp: &models.SynthesizedResponse{Success: false},
		err:  engineErr,
	}, nil, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: " "})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeClassificationFailed, errors.CodeOf(err))
	assert.False(t, errors.Normalize(err).Retryable)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeEngine{}, nil, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), nil)

	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
}

// ==========================
// Config
// ==========================

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, MaxJobsActive: 3, Timeout: 1500},
	}}

	c := LoadConfig(cfg)

	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
	assert.Equal(t, 3, c.MaxJobsActive)
	assert.True(t, c.PersistPlaces)
}

func TestLoadConfig_Defaults(t *testing.T) {
	c := LoadConfig(&config.Config{})

	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 5, c.MaxJobsActive)
}

// ==========================
// Job command delivery
// ==========================

func TestSendWithRetry(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeEngine{}, nil, nil, logger.NewTestLogger(t))
	h.sendRetry = &camunda.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("transient gateway error is resent", func(t *testing.T) {
		calls := 0
		err := h.sendWithRetry(context.Background(), "complete-job", func(context.Context) error {
			calls++
			if calls == 1 {
				return stdErrors.New("rpc error: code = Unavailable desc = connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := h.sendWithRetry(context.Background(), "complete-job", func(context.Context) error {
			calls++
			return stdErrors.New("rpc error: code = Unavailable")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, errors.ErrCodeOperationFailed, errors.CodeOf(err))
	})

	t.Run("rejected command is not resent", func(t *testing.T) {
		calls := 0
		err := h.sendWithRetry(context.Background(), "complete-job", func(context.Context) error {
			calls++
			return stdErrors.New("rpc error: code = NotFound desc = job not found")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
