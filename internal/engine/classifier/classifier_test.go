package classifier

import (
	"errors"
	"strings"
	"testing"

	apperrors "query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/extractor"
	"query-orchestrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T, opts ...Option) *Classifier {
	opts = append([]Option{WithLogger(logger.NewTestLogger(t))}, opts...)
	return New(extractor.New(), opts...)
}

// ==========================
// Classification precedence
// ==========================

func TestClassify_Precedence(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		text string
		want models.QueryType
	}{
		{"show me a map of how many cafes", models.QueryTypeMapDataOnly},
		{"Plot the coordinates of every museum", models.QueryTypeMapDataOnly},
		{"What is the average rating of coffee shops in Austin", models.QueryTypeAnalytics},
		{"How many hotels are in Boston", models.QueryTypeAnalytics},
		{"Is the farmers market busy on Saturday", models.QueryTypeAnalytics},
		{"Find restaurants near Times Square", models.QueryTypeSearchOnly},
		{"look for bakeries in Paris", models.QueryTypeSearchOnly},
		{"Find events in Chicago this weekend", models.QueryTypeComprehensive},
		{"search for restaurants and check the weather", models.QueryTypeComprehensive},
		{"Tell me about Seattle", models.QueryTypeComprehensive},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := c.Classify(tt.text, models.Entities{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"explain the bitmap encoding", models.QueryTypeComprehensive},
		{"Show maps of parks", models.QueryTypeMapDataOnly},
		{"Mapping coffee shops in Austin", models.QueryTypeMapDataOnly},
		{"Showing restaurants nearby", models.QueryTypeMapDataOnly},
		{"Visualizing parks", models.QueryTypeMapDataOnly},
		{"Plotted gyms downtown", models.QueryTypeMapDataOnly},
		{"Counting the cafes downtown", models.QueryTypeAnalytics},
		{"Summarize hotel ratings", models.QueryTypeAnalytics},
		{"Searching for bakeries", models.QueryTypeSearchOnly},
		{"Locating a pharmacy", models.QueryTypeSearchOnly},
		{"Find concerts and events", models.QueryTypeComprehensive},
		{"best location for a gym", models.QueryTypeComprehensive},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := c.Classify(tt.query, models.Entities{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Empty(t *testing.T) {
	c := newTestClassifier(t)
	_, err := c.Classify("   ", models.Entities{})
	assert.True(t, errors.Is(err, apperrors.ErrClassification))
}

// ==========================
// Derived flags
// ==========================

func TestRequiresMapping(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.RequiresMapping("visualize sales", models.Entities{}))
	assert.True(t, c.RequiresMapping("cafes", models.Entities{Locations: []string{"Austin"}}))
	assert.True(t, c.RequiresMapping("competition for gyms", models.Entities{}))
	assert.True(t, c.RequiresMapping("restaurants around here", models.Entities{}))
	assert.True(t, c.RequiresMapping("Showing restaurants nearby", models.Entities{}))
	assert.True(t, c.RequiresMapping("Visualizing parks", models.Entities{}))
	assert.True(t, c.RequiresMapping("analyzing competition", models.Entities{}))
	assert.False(t, c.RequiresMapping("tell me a joke", models.Entities{}))
}

func TestRequiresSummary(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.RequiresSummary("Tell me about the area"))
	assert.True(t, c.RequiresSummary("Explain foot traffic"))
	assert.True(t, c.RequiresSummary("What is open"))
	assert.False(t, c.RequiresSummary("show cafes"))
	assert.False(t, c.RequiresSummary("Find restaurants near Times Square"))
}

// ==========================
// Analyze
// ==========================

func TestAnalyze_AnalyticsScenario(t *testing.T) {
	c := newTestClassifier(t)

	analysis, err := c.Analyze("What is the average rating of coffee shops in Austin")
	require.NoError(t, err)

	assert.Equal(t, models.QueryTypeAnalytics, analysis.Type)
	assert.Equal(t, BaselineConfidence, analysis.Confidence)
	assert.Equal(t, []string{"Austin"}, analysis.Entities.Locations)
	assert.Equal(t, []string{"coffee shop"}, analysis.Entities.Categories)
	assert.Equal(t, []string{"average"}, analysis.Entities.Metrics)
	assert.True(t, analysis.RequiresMapping)
	assert.True(t, analysis.RequiresSummary)
	assert.Equal(t, []string{"planner", "analyst", "summarizer", "map-formatter"}, analysis.SuggestedExecutors)
	assert.False(t, analysis.Enriched())
}

func TestAnalyze_SearchScenario(t *testing.T) {
	c := newTestClassifier(t)

	analysis, err := c.Analyze("  Find restaurants near Times Square ")
	require.NoError(t, err)

	assert.Equal(t, "Find restaurants near Times Square", analysis.Query)
	assert.Equal(t, models.QueryTypeSearchOnly, analysis.Type)
	assert.True(t, analysis.RequiresMapping)
	assert.False(t, analysis.RequiresSummary)
	assert.Equal(t, []string{"searcher", "map-formatter"}, analysis.SuggestedExecutors)
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	c := newTestClassifier(t, WithMaxQueryLength(20))

	_, err := c.Analyze("")
	assert.Equal(t, apperrors.ErrCodeClassificationFailed, apperrors.CodeOf(err))

	_, err = c.Analyze(strings.Repeat("a", 21))
	assert.Equal(t, apperrors.ErrCodeClassificationFailed, apperrors.CodeOf(err))

	_, err = c.Analyze(strings.Repeat("a", 20))
	assert.NoError(t, err)
}
