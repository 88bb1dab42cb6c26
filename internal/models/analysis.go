package models

import "errors"

// ErrAlreadyEnriched is returned when context enrichment is attempted twice.
var ErrAlreadyEnriched = errors.New("analysis already enriched")

// Entities holds the structured fields pulled out of a query.
type Entities struct {
	Locations  []string `json:"locations"`
	Categories []string `json:"categories"`
	Metrics    []string `json:"metrics"`
	Timeframes []string `json:"timeframes"`
}

func (e Entities) Empty() bool {
	return len(e.Locations) == 0 && len(e.Categories) == 0 && len(e.Metrics) == 0 && len(e.Timeframes) == 0
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (e Entities) Clone() Entities {
	return Entities{
		Locations:  append([]string{}, e.Locations...),
		Categories: append([]string{}, e.Categories...),
		Metrics:    append([]string{}, e.Metrics...),
		Timeframes: append([]string{}, e.Timeframes...),
	}
}

// QueryAnalysis is created once per request. Only Confidence and Entities may
// change afterwards, and only through Enrich.
type QueryAnalysis struct {
	Query              string    `json:"query"`
	Type               QueryType `json:"type"`
	Confidence         float64   `json:"confidence"`
	Entities           Entities  `json:"extractedEntities"`
	RequiresMapping    bool      `json:"requiresMapping"`
	RequiresSummary    bool      `json:"requiresSummary"`
	SuggestedExecutors []string  `json:"suggestedExecutors"`

	enriched bool
}

// Enrich applies a single context adjustment. The confidence result is clamped to [0,1].
func (a *QueryAnalysis) Enrich(entities Entities, confidenceDelta float64) error {
	if a.enriched {
		return ErrAlreadyEnriched
	}
	a.enriched = true
	a.Entities = entities
	a.Confidence = ClampConfidence(a.Confidence + confidenceDelta)
	return nil
}

func (a *QueryAnalysis) Enriched() bool {
	return a.enriched
}

func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
