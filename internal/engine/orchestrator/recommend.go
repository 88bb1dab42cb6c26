package orchestrator

import (
	"fmt"

	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/models"
)

const (
	maxRelatedQueries   = 3
	maxSuggestedActions = 2
)

// Recommend derives follow-up queries and actions from the analysis and the
// response it produced. It has no side effects.
func Recommend(analysis *models.QueryAnalysis, resp *models.SynthesizedResponse) models.Recommendations {
	locations := analysis.Entities.Locations
	categories := analysis.Entities.Categories

	related := newLimited(maxRelatedQueries)
	switch {
	case len(locations) > 0 && len(categories) > 0:
		related.add(fmt.Sprintf("Top rated %s in %s", categories[0], locations[0]))
		if analysis.Type != models.QueryTypeAnalytics {
			related.add(fmt.Sprintf("Average rating of %s in %s", categories[0], locations[0]))
		}
	case len(categories) > 0:
		related.add(fmt.Sprintf("Find %s near me", categories[0]))
	}
	if len(locations) > 0 {
		related.add(fmt.Sprintf("Weather in %s this weekend", locations[0]))
		related.add(fmt.Sprintf("Events in %s this week", locations[0]))
		if analysis.Type != models.QueryTypeMapDataOnly {
			related.add(fmt.Sprintf("Show a map of %s", locations[0]))
		}
	}
	for _, c := range categories[min(1, len(categories)):] {
		related.add(fmt.Sprintf("Find %s nearby", c))
	}

	actions := newLimited(maxSuggestedActions)
	hasFeatures := len(resp.GeoCollection.Features) > 0
	if analysis.RequiresMapping {
		if hasFeatures {
			actions.add("Open the results on a map")
		} else {
			actions.add("Add a specific place or address to get map results")
		}
	}
	if analysis.RequiresSummary && !summarized(resp) {
		actions.add("Retry the request for a complete summary")
	}
	if resp.Metadata.Truncated {
		actions.add("Allow more execution time to complete every step")
	}
	if len(locations) == 0 {
		actions.add("Add a location to narrow the results")
	}
	if !resp.Success {
		actions.add("Retry the request")
	}

	return models.Recommendations{RelatedQueries: related.items, SuggestedActions: actions.items}
}

// summarized reports whether the summary text came from the phase meant to
// produce it: the summarize phase when the plan has one, any summary phase
// otherwise.
func summarized(resp *models.SynthesizedResponse) bool {
	for _, name := range resp.Metadata.Plan {
		if name == planner.PhaseSummarize {
			return resp.Metadata.SummarySource == planner.PhaseSummarize
		}
	}
	return resp.Metadata.SummarySource != ""
}

type limited struct {
	items []string
	max   int
	seen  map[string]bool
}

func newLimited(max int) *limited {
	return &limited{items: []string{}, max: max, seen: make(map[string]bool)}
}

func (l *limited) add(s string) {
	if len(l.items) >= l.max || l.seen[s] {
		return
	}
	l.seen[s] = true
	l.items = append(l.items, s)
}
