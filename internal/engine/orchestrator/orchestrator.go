// Package orchestrator is the entry point of the query engine. It drives a
// request from raw text through analysis, planning, execution and synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/engine/classifier"
	"query-orchestrator/internal/engine/coordinator"
	"query-orchestrator/internal/engine/planner"
	"query-orchestrator/internal/engine/synthesizer"
	"query-orchestrator/internal/models"
)

const (
	DefaultPrewarmTimeout = 5 * time.Second
	maxPrewarmLocations   = 5
)

var prewarmOperations = []string{planner.OpGeocode, planner.OpWeather}

type Config struct {
	DefaultCacheStrategy  string
	DefaultResponseFormat string
	PrewarmTimeout        time.Duration
}

// Dependencies are the engine components a request passes through.
type Dependencies struct {
	Classifier  *classifier.Classifier
	Planner     *planner.Planner
	Coordinator *coordinator.Coordinator
	Synthesizer *synthesizer.Synthesizer
	Cache       *cache.ResultCache
	// Operations serves cache pre-warm lookups.
	Operations coordinator.ExternalOperation
}

type Orchestrator struct {
	config Config
	deps   Dependencies
	logger logger.Logger
	newID  func() string

	prewarm sync.WaitGroup
}

func New(config Config, deps Dependencies, log logger.Logger) *Orchestrator {
	if config.DefaultCacheStrategy == "" {
		config.DefaultCacheStrategy = CacheStandard
	}
	if config.DefaultResponseFormat == "" {
		config.DefaultResponseFormat = synthesizer.FormatSummary
	}
	if config.PrewarmTimeout <= 0 {
		config.PrewarmTimeout = DefaultPrewarmTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Orchestrator{
		config: config,
		deps:   deps,
		logger: log,
		newID:  uuid.NewString,
	}
}

// Handle answers one query. Classification and planning failures return a
// well-formed unsuccessful response together with the typed error; every
// other failure is reported inside the response.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*models.SynthesizedResponse, error) {
	start := time.Now()
	requestID := o.newID()
	log := o.logger.WithFields(map[string]interface{}{
		"requestId": requestID,
		"sessionId": req.SessionID,
	})
	state := newRequestState(log)
	strategy := o.cacheStrategy(req.Preferences.CacheStrategy)
	format := o.responseFormat(req.Preferences.ResponseFormat)

	log.Info("query received", map[string]interface{}{
		"queryLength":   len(req.Query),
		"cacheStrategy": strategy,
		"format":        format,
	})

	analysis, err := o.deps.Classifier.Analyze(req.Query)
	if err != nil {
		return o.fail(requestID, req, nil, "classification", err, state, start, log), err
	}
	state.to(models.StateAnalyzed)

	if err := enrich(analysis, req.Context); err != nil {
		log.Warn("context enrichment skipped", map[string]interface{}{"error": err.Error()})
	}
	state.to(models.StateEnriched)

	plan, err := o.deps.Planner.Plan(analysis)
	if err != nil {
		return o.fail(requestID, req, analysis, "planning", err, state, start, log), err
	}
	state.to(models.StatePlanned)

	opts := fetchOptions(strategy)
	if prewarmEnabled(strategy) && len(analysis.Entities.Locations) > 0 {
		o.startPrewarm(analysis.Entities.Locations, opts, log)
		state.to(models.StatePrewarmed)
	}

	state.to(models.StateExecuting)
	exec := o.deps.Coordinator.Execute(ctx, plan, coordinator.Request{
		RequestID:        requestID,
		Analysis:         analysis,
		Cache:            opts,
		MaxExecutionTime: time.Duration(req.Preferences.MaxExecutionTimeMs) * time.Millisecond,
	})

	resp := o.deps.Synthesizer.Combine(analysis, exec, format)
	state.to(models.StateSynthesized)

	if strategy == CacheMinimal {
		o.deps.Cache.Sweep(ctx)
	}

	resp.RequestID = requestID
	resp.SessionID = req.SessionID
	resp.Metadata.Plan = plan.PhaseNames()
	resp.Metadata.ExecutionTimeMs = time.Since(start).Milliseconds()
	resp.Recommendations = Recommend(analysis, resp)
	state.to(models.StateDone)
	resp.Metadata.State = state.current

	status := "success"
	if !resp.Success {
		status = "degraded"
	}
	o.record(analysis.Type, status, start)
	log.Info("query completed", map[string]interface{}{
		"queryType":  string(analysis.Type),
		"success":    resp.Success,
		"features":   len(resp.GeoCollection.Features),
		"errors":     len(resp.Errors),
		"durationMs": resp.Metadata.ExecutionTimeMs,
	})
	return resp, nil
}

// Wait blocks until every background pre-warm lookup has finished.
func (o *Orchestrator) Wait() {
	o.prewarm.Wait()
}

// startPrewarm fires cheap per-location lookups into the cache on a detached
// context. Results are only kept in the cache and failures are dropped.
func (o *Orchestrator) startPrewarm(locations []string, opts cache.FetchOptions, log logger.Logger) {
	if o.deps.Operations == nil || o.deps.Cache == nil {
		return
	}
	if len(locations) > maxPrewarmLocations {
		locations = locations[:maxPrewarmLocations]
	}
	for _, loc := range locations {
		for _, opID := range prewarmOperations {
			params := coordinator.LocationParams(loc)
			opID := opID
			o.prewarm.Add(1)
			go func() {
				defer o.prewarm.Done()
				ctx, cancel := context.WithTimeout(context.Background(), o.config.PrewarmTimeout)
				defer cancel()
				_, _, err := o.deps.Cache.Fetch(ctx, opID, params, opts, func(ctx context.Context) (interface{}, error) {
					return o.deps.Operations.Call(ctx, opID, params)
				})
				if err != nil {
					log.Debug("pre-warm lookup failed", map[string]interface{}{"operation": opID, "error": err.Error()})
				}
			}()
		}
	}
}

func (o *Orchestrator) fail(
	requestID string,
	req Request,
	analysis *models.QueryAnalysis,
	stage string,
	err error,
	state *requestState,
	start time.Time,
	log logger.Logger,
) *models.SynthesizedResponse {
	state.to(models.StateFailed)
	stdErr := errors.Normalize(err)

	resp := &models.SynthesizedResponse{
		RequestID:         requestID,
		SessionID:         req.SessionID,
		Success:           false,
		ExtractedEntities: models.Entities{}.Clone(),
		SummaryText:       failureSummary(stdErr),
		GeoCollection:     models.GeoCollection{Type: "FeatureCollection", Features: []models.Feature{}},
		Metadata: models.ResponseMetadata{
			ExecutionTimeMs:  time.Since(start).Milliseconds(),
			ExecutorsUsed:    []string{},
			DetectedEntities: []string{},
			State:            state.current,
			Intent:           "unknown",
		},
		Recommendations: models.Recommendations{RelatedQueries: []string{}, SuggestedActions: []string{"Rephrase the request"}},
		Errors: []models.PhaseError{{
			Phase:   stage,
			Code:    string(stdErr.Code),
			Message: failureDetail(stdErr),
		}},
	}

	queryType := models.QueryType("UNKNOWN")
	if analysis != nil {
		queryType = analysis.Type
		resp.QueryType = analysis.Type
		resp.ExtractedEntities = analysis.Entities.Clone()
		resp.Metadata.Intent = analysis.Type.Intent()
		resp.Metadata.Confidence = analysis.Confidence
		resp.Metadata.DetectedEntities = append([]string{}, analysis.Entities.Locations...)
	}

	o.record(queryType, "failed", start)
	log.Error("query failed", map[string]interface{}{
		"stage":     stage,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	return resp
}

func failureSummary(err *errors.StandardError) string {
	if err.Details == "" {
		return err.Message + "."
	}
	return fmt.Sprintf("%s: %s.", err.Message, strings.TrimSuffix(err.Details, "."))
}

func failureDetail(err *errors.StandardError) string {
	if err.Details != "" {
		return err.Details
	}
	return err.Message
}

func (o *Orchestrator) record(queryType models.QueryType, status string, start time.Time) {
	metrics.QueryRequests.WithLabelValues(string(queryType), status).Inc()
	metrics.QueryDuration.WithLabelValues(string(queryType)).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) cacheStrategy(requested string) string {
	switch s := strings.ToLower(strings.TrimSpace(requested)); s {
	case CacheStandard, CacheAggressive, CacheMinimal, CacheNone:
		return s
	default:
		return o.config.DefaultCacheStrategy
	}
}

func (o *Orchestrator) responseFormat(requested string) string {
	switch f := strings.ToLower(strings.TrimSpace(requested)); f {
	case synthesizer.FormatSummary, synthesizer.FormatDetailed:
		return f
	default:
		return o.config.DefaultResponseFormat
	}
}
