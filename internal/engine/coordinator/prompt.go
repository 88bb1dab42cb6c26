package coordinator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/models"
)

var phaseInstructions = map[string]string{
	planner.PhasePlan:         "Break the request into the information that must be gathered. Reply with a short plan.",
	planner.PhaseCollect:      "Gather the places, conditions and events relevant to the request from the data below.",
	planner.PhaseDirectSearch: "Answer the search request with the matching places from the data below.",
	planner.PhaseGeospatial:   "Return the places below as a GeoJSON FeatureCollection of Point features.",
	planner.PhaseMap:          "Return every place mentioned in the context as a GeoJSON FeatureCollection of Point features.",
	planner.PhaseAggregate:    "Compute the requested statistics from the data below.",
	planner.PhaseSummarize:    "Write a concise answer to the request using the context below.",
}

// LocationParams is the parameter set for per-location lookups. Pre-warming
// uses it too, so warmed entries share keys with phase calls.
func LocationParams(location string) map[string]interface{} {
	return map[string]interface{}{"location": location}
}

// OperationParams returns one parameter set per call the operation needs for
// this analysis. Location-bound operations get nothing without a location.
func OperationParams(operationID string, a *models.QueryAnalysis) []map[string]interface{} {
	locations := a.Entities.Locations
	switch operationID {
	case planner.OpPlaceSearch:
		return []map[string]interface{}{{
			"query":      a.Query,
			"categories": nonNil(a.Entities.Categories),
			"locations":  nonNil(locations),
		}}
	case planner.OpGeocode:
		calls := make([]map[string]interface{}, 0, len(locations))
		for _, loc := range locations {
			calls = append(calls, LocationParams(loc))
		}
		return calls
	case planner.OpWeather:
		if len(locations) == 0 {
			return nil
		}
		return []map[string]interface{}{LocationParams(locations[0])}
	case planner.OpEvents:
		if len(locations) == 0 {
			return nil
		}
		timeframe := "upcoming"
		if len(a.Entities.Timeframes) > 0 {
			timeframe = a.Entities.Timeframes[0]
		}
		return []map[string]interface{}{{"location": locations[0], "timeframe": timeframe}}
	case planner.OpAggregateStats:
		return []map[string]interface{}{{
			"categories": nonNil(a.Entities.Categories),
			"locations":  nonNil(locations),
			"metrics":    nonNil(a.Entities.Metrics),
		}}
	default:
		return []map[string]interface{}{{"query": a.Query}}
	}
}

// BuildPrompt assembles the reasoning prompt for a phase from the query, the
// outputs of its dependencies and the operation data it gathered.
func BuildPrompt(
	phase models.Phase,
	a *models.QueryAnalysis,
	deps map[string]*models.PhaseResult,
	operations map[string]interface{},
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", a.Query)
	fmt.Fprintf(&b, "Query type: %s\n", a.Type)
	if len(a.Entities.Locations) > 0 {
		fmt.Fprintf(&b, "Locations: %s\n", strings.Join(a.Entities.Locations, "; "))
	}
	if len(a.Entities.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(a.Entities.Categories, ", "))
	}

	instruction, ok := phaseInstructions[phase.Name]
	if !ok {
		instruction = fmt.Sprintf("Complete the %s step for the request.", phase.Name)
	}
	fmt.Fprintf(&b, "\nTask: %s\n", instruction)

	for _, name := range phase.Dependencies {
		dep, ok := deps[name]
		if !ok {
			fmt.Fprintf(&b, "\n[%s]\n(unavailable)\n", name)
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s\n", name, renderOutput(dep.Output))
	}

	ids := make([]string, 0, len(operations))
	for id := range operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data, err := json.Marshal(operations[id])
		if err != nil {
			data = []byte(fmt.Sprintf("%v", operations[id]))
		}
		fmt.Fprintf(&b, "\n[data:%s]\n%s\n", id, data)
	}
	return b.String()
}

func renderOutput(o models.ReasoningOutput) string {
	if o.Kind != models.OutputStructured {
		return o.ExtractText()
	}
	data, err := json.Marshal(o.Data)
	if err != nil {
		return o.ExtractText()
	}
	return string(data)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
