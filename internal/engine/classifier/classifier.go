// Package classifier assigns a QueryType and derived flags to a query using
// keyword and entity heuristics.
package classifier

import (
	"strings"
	"unicode/utf8"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const (
	BaselineConfidence    = 0.8
	DefaultMaxQueryLength = 1000
)

// EntityExtractor is the extraction step Analyze runs first.
type EntityExtractor interface {
	Extract(text string) models.Entities
}

type Classifier struct {
	extractor      EntityExtractor
	maxQueryLength int
	logger         logger.Logger
}

type Option func(*Classifier)

// WithMaxQueryLength bounds the accepted query length in runes.
func WithMaxQueryLength(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxQueryLength = n
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Classifier) { c.logger = log }
}

func New(extractor EntityExtractor, opts ...Option) *Classifier {
	c := &Classifier{
		extractor:      extractor,
		maxQueryLength: DefaultMaxQueryLength,
		logger:         logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify applies the precedence mapping > analytics > search > comprehensive.
func (c *Classifier) Classify(text string, entities models.Entities) (models.QueryType, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.NewClassificationError("query is empty")
	}

	switch {
	case mapping.matches(text):
		return models.QueryTypeMapDataOnly, nil
	case analytics.matches(text):
		return models.QueryTypeAnalytics, nil
	case search.matches(text) && !liveData.matches(text):
		return models.QueryTypeSearchOnly, nil
	default:
		return models.QueryTypeComprehensive, nil
	}
}

// RequiresMapping is true for visualization or area keywords, or when any
// location was extracted.
func (c *Classifier) RequiresMapping(text string, entities models.Entities) bool {
	return mapping.matches(text) || len(entities.Locations) > 0 || area.matches(text)
}

func (c *Classifier) RequiresSummary(text string) bool {
	return summary.matches(text)
}

// Analyze builds the QueryAnalysis for a raw query.
func (c *Classifier) Analyze(text string) (*models.QueryAnalysis, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, errors.NewClassificationError("query is empty")
	}
	if n := utf8.RuneCountInString(query); n > c.maxQueryLength {
		return nil, errors.NewClassificationError("query exceeds maximum length")
	}

	entities := c.extractor.Extract(query)
	queryType, err := c.Classify(query, entities)
	if err != nil {
		return nil, err
	}

	analysis := &models.QueryAnalysis{
		Query:           query,
		Type:            queryType,
		Confidence:      BaselineConfidence,
		Entities:        entities,
		RequiresMapping: c.RequiresMapping(query, entities),
		RequiresSummary: c.RequiresSummary(query),
	}
	analysis.SuggestedExecutors = SuggestedExecutors(analysis)

	c.logger.Debug("query analyzed", map[string]interface{}{
		"queryType":       string(queryType),
		"locations":       len(entities.Locations),
		"categories":      len(entities.Categories),
		"requiresMapping": analysis.RequiresMapping,
		"requiresSummary": analysis.RequiresSummary,
	})
	return analysis, nil
}

// SuggestedExecutors lists the reasoning roles a plan for this analysis uses.
func SuggestedExecutors(a *models.QueryAnalysis) []string {
	var roles []string
	switch a.Type {
	case models.QueryTypeSearchOnly:
		roles = []string{"searcher"}
	case models.QueryTypeMapDataOnly:
		return []string{"planner", "map-formatter"}
	case models.QueryTypeAnalytics:
		roles = []string{"planner", "analyst", "summarizer"}
	default:
		roles = []string{"planner", "collector", "summarizer"}
	}
	if a.RequiresMapping {
		roles = append(roles, "map-formatter")
	}
	return roles
}
