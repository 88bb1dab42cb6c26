package orchestrator

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/engine/classifier"
	"query-orchestrator/internal/engine/coordinator"
	"query-orchestrator/internal/engine/extractor"
	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/engine/synthesizer"
	"query-orchestrator/internal/models"
)

// ==========================
// Fakes
// ==========================

const timesSquareFC = `{"type":"FeatureCollection","features":[
	{"type":"Feature","geometry":{"type":"Point","coordinates":[-73.9855,40.758]},"properties":{"name":"Times Square"}}
]}`

type scriptedReasoner struct {
	mu      sync.Mutex
	replies map[string]interface{}
	invoked []string
}

func newScriptedReasoner() *scriptedReasoner {
	return &scriptedReasoner{replies: map[string]interface{}{
		planner.RolePlanner:      "1. find places 2. summarize",
		planner.RoleSearcher:     "Found 3 restaurants near Times Square: Carmine's, Joe Allen and Sardi's.",
		planner.RoleCollector:    `{"places":[{"name":"Pike Place Market","lat":47.6097,"lon":-122.3422}]}`,
		planner.RoleMapFormatter: timesSquareFC,
		planner.RoleAnalyst:      `{"average_rating": 4.3, "count": 57}`,
		planner.RoleSummarizer:   "Coffee shops in the area average 4.3 stars.",
	}}
}

func (r *scriptedReasoner) Invoke(ctx context.Context, role, prompt string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoked = append(r.invoked, role)
	return r.replies[role], nil
}

type countingOperations struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newCountingOperations() *countingOperations {
	return &countingOperations{calls: make(map[string]int), fail: make(map[string]error)}
}

func (c *countingOperations) Call(ctx context.Context, operationID string, params map[string]interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[operationID]++
	if err := c.fail[operationID]; err != nil {
		return nil, err
	}
	switch operationID {
	case planner.OpPlaceSearch:
		return []interface{}{
			map[string]interface{}{"id": "p-1", "name": "Carmine's", "lat": 40.7573, "lon": -73.9865},
		}, nil
	case planner.OpGeocode:
		return map[string]interface{}{"name": params["location"], "lat": 40.758, "lon": -73.9855}, nil
	case planner.OpWeather:
		return map[string]interface{}{"forecast": "sunny", "tempC": 21}, nil
	default:
		return map[string]interface{}{"operation": operationID}, nil
	}
}

func (c *countingOperations) count(operationID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[operationID]
}

type fixture struct {
	orchestrator *Orchestrator
	reasoner     *scriptedReasoner
	ops          *countingOperations
}

func newFixture(t *testing.T, plannerOpts ...planner.Option) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	reasoner := newScriptedReasoner()
	ops := newCountingOperations()
	rc := cache.New(cache.NewMemoryStore(), cache.WithLogger(log))

	o := New(Config{}, Dependencies{
		Classifier:  classifier.New(extractor.New(), classifier.WithLogger(log)),
		Planner:     planner.New(append(plannerOpts, planner.WithLogger(log))...),
		Coordinator: coordinator.New(reasoner, ops, rc, coordinator.WithLogger(log)),
		Synthesizer: synthesizer.New(log),
		Cache:       rc,
		Operations:  ops,
	}, log)
	t.Cleanup(o.Wait)
	return &fixture{orchestrator: o, reasoner: reasoner, ops: ops}
}

// ==========================
// End-to-end scenarios
// ==========================

func TestHandle_SearchWithLandmark(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.Handle(context.Background(), Request{Query: "Find restaurants near Times Square", SessionID: "s-1"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, models.QueryTypeSearchOnly, resp.QueryType)
	assert.Equal(t, []string{"direct-search", "map"}, resp.Metadata.Plan)
	assert.Equal(t, []string{"Times Square"}, resp.ExtractedEntities.Locations)
	assert.NotEmpty(t, resp.GeoCollection.Features)
	assert.Contains(t, resp.SummaryText, "restaurants")
	assert.Equal(t, "search", resp.Metadata.Intent)
	assert.Equal(t, models.StateDone, resp.Metadata.State)
	assert.Equal(t, "s-1", resp.SessionID)
	_, parseErr := uuid.Parse(resp.RequestID)
	assert.NoError(t, parseErr)
}

func TestHandle_AnalyticsQuery(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.Handle(context.Background(), Request{Query: "What is the average rating of coffee shops in Austin"})
	require.NoError(t, err)

	assert.Equal(t, models.QueryTypeAnalytics, resp.QueryType)
	assert.Equal(t, []string{"Austin"}, resp.ExtractedEntities.Locations)
	assert.Equal(t, []string{"coffee shop"}, resp.ExtractedEntities.Categories)
	assert.Equal(t, []string{"average"}, resp.ExtractedEntities.Metrics)
	// the Austin location sets requiresMapping, which appends map
	assert.Equal(t, []string{"plan", "aggregate", "summarize", "map"}, resp.Metadata.Plan)
	assert.Equal(t, "analytics", resp.Metadata.Intent)
	assert.Equal(t, []string{"Austin"}, resp.Metadata.DetectedEntities)
	assert.Equal(t, "Coffee shops in the area average 4.3 stars.", resp.SummaryText)
	// aggregate statistics are never cached
	assert.Equal(t, 1, f.ops.count(planner.OpAggregateStats))
}

func TestHandle_OperationFailureDegradesGracefully(t *testing.T) {
	f := newFixture(t)
	f.ops.fail[planner.OpEvents] = stdErrors.New("events provider returned 503")

	resp, err := f.orchestrator.Handle(context.Background(), Request{
		Query:       "What is happening in Seattle this weekend",
		Preferences: Preferences{ResponseFormat: "detailed"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, models.QueryTypeComprehensive, resp.QueryType)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, planner.OpEvents, resp.Errors[0].Operation)

	collect, ok := resp.RawData["collect"].(map[string]interface{})
	require.True(t, ok)
	operations := collect["operations"].(map[string]interface{})
	assert.NotContains(t, operations, planner.OpEvents)
	assert.Contains(t, operations, planner.OpWeather)
	assert.NotEmpty(t, resp.SummaryText)
}

// ==========================
// Failures
// ==========================

func TestHandle_EmptyQueryFailsFast(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.Handle(context.Background(), Request{Query: "   ", SessionID: "s-2"})

	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, errors.ErrClassification))
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, models.StateFailed, resp.Metadata.State)
	assert.Equal(t, "s-2", resp.SessionID)
	assert.Equal(t, "FeatureCollection", resp.GeoCollection.Type)
	assert.NotNil(t, resp.GeoCollection.Features)
	assert.Contains(t, resp.SummaryText, "query is empty")
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "CLASSIFICATION_FAILED", resp.Errors[0].Code)
	assert.Empty(t, f.reasoner.invoked)
}

func TestHandle_PlanningFailure(t *testing.T) {
	broken := planner.Template{
		QueryType: models.QueryTypeSearchOnly,
		Phases: []planner.PhaseTemplate{
			{Name: "a", Executor: "searcher", Dependencies: []string{"b"}},
			{Name: "b", Executor: "searcher"},
		},
	}
	f := newFixture(t, planner.WithTemplate(broken))

	resp, err := f.orchestrator.Handle(context.Background(), Request{Query: "Find tacos in Denver"})

	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, errors.ErrPlanning))
	assert.False(t, resp.Success)
	assert.Equal(t, models.QueryTypeSearchOnly, resp.QueryType)
	assert.Equal(t, []string{"Denver"}, resp.ExtractedEntities.Locations)
	assert.Equal(t, "PLANNING_FAILED", resp.Errors[0].Code)
	assert.Equal(t, "planning", resp.Errors[0].Phase)
}

// ==========================
// Context enrichment
// ==========================

func TestHandle_InjectsUserLocation(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.Handle(context.Background(), Request{
		Query:   "Find coffee shops",
		Context: Context{UserLocation: &UserLocation{Name: "Portland"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Portland"}, resp.ExtractedEntities.Locations)
	assert.Equal(t, []string{"Portland"}, resp.Metadata.DetectedEntities)
}

func TestEnrich(t *testing.T) {
	lat, lon := 45.52, -122.68
	tests := []struct {
		name       string
		analysis   models.QueryAnalysis
		context    Context
		locations  []string
		confidence float64
	}{
		{
			name:       "focus matches intent",
			analysis:   models.QueryAnalysis{Type: models.QueryTypeSearchOnly, Confidence: 0.8},
			context:    Context{DomainFocus: "search"},
			locations:  []string{},
			confidence: 1.0,
		},
		{
			name:       "focus matches category",
			analysis:   models.QueryAnalysis{Type: models.QueryTypeSearchOnly, Confidence: 0.8, Entities: models.Entities{Categories: []string{"coffee shop"}}},
			context:    Context{DomainFocus: "Coffee Shop"},
			locations:  []string{},
			confidence: 0.9,
		},
		{
			name:       "unrelated focus",
			analysis:   models.QueryAnalysis{Type: models.QueryTypeAnalytics, Confidence: 0.8},
			context:    Context{DomainFocus: "travel"},
			locations:  []string{},
			confidence: 0.8,
		},
		{
			name:       "coordinates become a location",
			analysis:   models.QueryAnalysis{Type: models.QueryTypeComprehensive, Confidence: 0.8},
			context:    Context{UserLocation: &UserLocation{Lat: &lat, Lon: &lon}},
			locations:  []string{"45.52,-122.68"},
			confidence: 0.8,
		},
		{
			name:       "extracted location wins",
			analysis:   models.QueryAnalysis{Type: models.QueryTypeComprehensive, Confidence: 0.8, Entities: models.Entities{Locations: []string{"Austin"}}},
			context:    Context{UserLocation: &UserLocation{Name: "Portland"}},
			locations:  []string{"Austin"},
			confidence: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.analysis
			require.NoError(t, enrich(&a, tt.context))
			assert.Equal(t, tt.locations, a.Entities.Locations)
			assert.InDelta(t, tt.confidence, a.Confidence, 1e-9)
			assert.Error(t, enrich(&a, tt.context))
		})
	}
}

// ==========================
// Cache strategies
// ==========================

func TestHandle_PrewarmFillsCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Handle(context.Background(), Request{Query: "Find restaurants near Times Square"})
	require.NoError(t, err)
	f.orchestrator.Wait()

	// the search plan never asks for weather; only pre-warm does
	assert.Equal(t, 1, f.ops.count(planner.OpWeather))
	// pre-warm and the map phase share one geocode call
	assert.Equal(t, 1, f.ops.count(planner.OpGeocode))
}

func TestHandle_NoPrewarmForMinimalAndNone(t *testing.T) {
	for _, strategy := range []string{CacheMinimal, CacheNone} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.orchestrator.Handle(context.Background(), Request{
				Query:       "Find restaurants near Times Square",
				Preferences: Preferences{CacheStrategy: strategy},
			})
			require.NoError(t, err)
			f.orchestrator.Wait()

			assert.Equal(t, 0, f.ops.count(planner.OpWeather))
		})
	}
}

func TestHandle_CacheReuseAcrossRequests(t *testing.T) {
	f := newFixture(t)
	req := Request{Query: "Find restaurants near Times Square"}

	_, err := f.orchestrator.Handle(context.Background(), req)
	require.NoError(t, err)
	f.orchestrator.Wait()
	second, err := f.orchestrator.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, f.ops.count(planner.OpPlaceSearch))
	assert.GreaterOrEqual(t, second.Metadata.CacheHits, 2)
}

func TestHandle_NoneStrategyBypassesCache(t *testing.T) {
	f := newFixture(t)
	req := Request{Query: "Find restaurants near Times Square", Preferences: Preferences{CacheStrategy: "none"}}

	_, err := f.orchestrator.Handle(context.Background(), req)
	require.NoError(t, err)
	second, err := f.orchestrator.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, f.ops.count(planner.OpPlaceSearch))
	assert.Equal(t, 0, second.Metadata.CacheHits)
}

func TestFetchOptions(t *testing.T) {
	assert.Equal(t, cache.FetchOptions{TTLScale: 2}, fetchOptions(CacheAggressive))
	assert.Equal(t, cache.FetchOptions{Bypass: true}, fetchOptions(CacheNone))
	assert.Equal(t, cache.FetchOptions{}, fetchOptions(CacheStandard))
	assert.Equal(t, cache.FetchOptions{}, fetchOptions(CacheMinimal))
}

func TestHandle_UnknownPreferencesFallBackToDefaults(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orchestrator.Handle(context.Background(), Request{
		Query:       "Find restaurants near Times Square",
		Preferences: Preferences{CacheStrategy: "turbo", ResponseFormat: "verbose"},
	})
	require.NoError(t, err)

	assert.Nil(t, resp.RawData)
	assert.True(t, resp.Success)
}

// ==========================
// State machine
// ==========================

func TestRequestState_Transitions(t *testing.T) {
	s := newRequestState(logger.NewTestLogger(t))
	for _, next := range []models.RequestState{
		models.StateAnalyzed, models.StateEnriched, models.StatePlanned,
		models.StateExecuting, models.StateSynthesized, models.StateDone,
	} {
		require.NoError(t, s.advance(next))
	}
	assert.Equal(t, models.StateDone, s.current)
	assert.Len(t, s.history, 7)
	assert.Error(t, s.advance(models.StateExecuting))
}

func TestRequestState_FailedOnlyBeforeExecution(t *testing.T) {
	s := newRequestState(logger.NewTestLogger(t))
	require.NoError(t, s.advance(models.StateAnalyzed))
	require.NoError(t, s.advance(models.StateEnriched))
	require.NoError(t, s.advance(models.StatePlanned))
	require.NoError(t, s.advance(models.StatePrewarmed))
	require.NoError(t, s.advance(models.StateExecuting))
	assert.Error(t, s.advance(models.StateFailed))
}
