// Package synthesizer merges the results of an executed plan into a single
// response.
package synthesizer

import (
	"fmt"
	"sort"
	"strings"

	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/engine/coordinator"
	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/models"
)

// Response formats.
const (
	FormatSummary  = "summary"
	FormatDetailed = "detailed"
)

var (
	// summaryPhases are tried in order for the response text.
	summaryPhases = []string{planner.PhaseSummarize, planner.PhaseAggregate, planner.PhaseDirectSearch}
	mappingPhases = []string{planner.PhaseMap, planner.PhaseGeospatial}
)

type Synthesizer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Synthesizer{logger: log}
}

// Combine builds the response for an executed plan. RawData is only set for
// the detailed format.
func (s *Synthesizer) Combine(analysis *models.QueryAnalysis, exec *coordinator.ExecutionResult, format string) *models.SynthesizedResponse {
	results := exec.PhaseResults.Snapshot()
	names := exec.PhaseResults.Names()

	features := s.geoFeatures(results, names)
	bounds, center := boundsAndCenter(features)

	resp := &models.SynthesizedResponse{
		Success:           exec.Success,
		QueryType:         analysis.Type,
		ExtractedEntities: analysis.Entities.Clone(),
		SummaryText:       summaryText(results, names, exec, len(features)),
		GeoCollection: models.GeoCollection{
			Type:     "FeatureCollection",
			Features: features,
			Bounds:   bounds,
			Center:   center,
		},
		Metadata: models.ResponseMetadata{
			ExecutionTimeMs:  exec.DurationMs,
			ExecutorsUsed:    executorsUsed(results),
			CacheHits:        exec.CacheHits,
			ParallelPhases:   exec.ParallelPhases,
			Confidence:       analysis.Confidence,
			Intent:           analysis.Type.Intent(),
			DetectedEntities: append([]string{}, analysis.Entities.Locations...),
			Truncated:        exec.Truncated,
			SummarySource:    summarySource(results),
		},
		Errors: exec.Errors,
	}
	if format == FormatDetailed {
		resp.RawData = rawData(results)
	}

	s.logger.Debug("response synthesized", map[string]interface{}{
		"features":    len(features),
		"summaryFrom": resp.Metadata.SummarySource,
		"success":     resp.Success,
	})
	return resp
}

// geoFeatures prefers a mapping phase that produced a non-empty
// FeatureCollection and otherwise scans every usable phase for point-like
// records.
func (s *Synthesizer) geoFeatures(results map[string]*models.PhaseResult, names []string) []models.Feature {
	for _, name := range mappingPhases {
		r, ok := results[name]
		if !ok || !r.Usable() || r.Output.Kind != models.OutputStructured {
			continue
		}
		if features, ok := featureCollectionFrom(r.Output.Data); ok && len(features) > 0 {
			return features
		}
		s.logger.Debug("mapping output has no usable features, scanning payloads", map[string]interface{}{"phase": name})
	}

	scanner := newPointScanner()
	for _, name := range names {
		r := results[name]
		if !r.Usable() {
			continue
		}
		if r.Output.Kind == models.OutputStructured {
			scanner.scan(r.Output.Data, name)
		}
		ops := make([]string, 0, len(r.Operations))
		for id := range r.Operations {
			ops = append(ops, id)
		}
		sort.Strings(ops)
		for _, id := range ops {
			scanner.scan(r.Operations[id], name)
		}
	}
	return scanner.features
}

// summarySource is the first summary phase, in priority order, that is usable
// and produced non-empty text.
func summarySource(results map[string]*models.PhaseResult) string {
	for _, name := range summaryPhases {
		r, ok := results[name]
		if !ok || !r.Usable() {
			continue
		}
		if strings.TrimSpace(r.Output.ExtractText()) != "" {
			return name
		}
	}
	return ""
}

func summaryText(results map[string]*models.PhaseResult, names []string, exec *coordinator.ExecutionResult, featureCount int) string {
	if source := summarySource(results); source != "" {
		return strings.TrimSpace(results[source].Output.ExtractText())
	}

	var unavailable []string
	for _, name := range names {
		if !results[name].Usable() {
			unavailable = append(unavailable, name)
		}
	}
	if len(unavailable) > 0 {
		return fmt.Sprintf("Could not retrieve results for: %s.", strings.Join(unavailable, ", "))
	}
	if text := strings.TrimSpace(exec.FinalOutput.ExtractText()); text != "" {
		return text
	}
	if featureCount > 0 {
		return fmt.Sprintf("Found %d location(s).", featureCount)
	}
	return "No results were found for the request."
}

func executorsUsed(results map[string]*models.PhaseResult) []string {
	set := make(map[string]bool)
	for _, r := range results {
		if r.Executor != "" && !r.Skipped {
			set[r.Executor] = true
		}
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func rawData(results map[string]*models.PhaseResult) map[string]interface{} {
	raw := make(map[string]interface{}, len(results))
	for name, r := range results {
		entry := map[string]interface{}{
			"output":  r.Output.Payload(),
			"failed":  r.Failed,
			"skipped": r.Skipped,
		}
		if len(r.Operations) > 0 {
			entry["operations"] = r.Operations
		}
		raw[name] = entry
	}
	return raw
}
