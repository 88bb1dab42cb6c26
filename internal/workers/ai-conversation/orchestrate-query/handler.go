package orchestratequery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"query-orchestrator/internal/common/camunda"
	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/observability"
	"query-orchestrator/internal/common/validation"
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/models"
)

const (
	TaskType = "orchestrate-query"
)

// QueryEngine answers one query.
type QueryEngine interface {
	Handle(ctx context.Context, req orchestrator.Request) (*models.SynthesizedResponse, error)
}

// PlaceWriter persists identified map features.
type PlaceWriter interface {
	UpsertFeatures(ctx context.Context, features []models.Feature) (int, error)
}

type Handler struct {
	config       *Config
	engine       QueryEngine
	places       PlaceWriter
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	sendRetry    *camunda.RetryConfig
	logger       logger.Logger
}

// NewHandler builds the job handler. places and obs may be nil.
func NewHandler(config *Config, engine QueryEngine, places PlaceWriter, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		places:       places,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		sendRetry:    camunda.DefaultRetryConfig,
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// parseInput validates the raw variables before decoding them.
func parseInput(variables string) (*Input, error) {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse variables: %v", err))
	}
	if result := validation.ValidateQueryRequest(vars); !result.Valid {
		return nil, errors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("decode request: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	start := time.Now()
	resp, err := h.engine.Handle(ctx, *input)
	queryType := "UNKNOWN"
	if resp != nil && resp.QueryType != "" {
		queryType = string(resp.QueryType)
	}
	h.obs.RecordRequestDuration(ctx, time.Since(start), queryType)
	if err != nil {
		h.obs.RecordRequest(ctx, queryType, "failed")
		return nil, err
	}

	status := "success"
	if !resp.Success {
		status = "degraded"
	}
	h.obs.RecordRequest(ctx, queryType, status)

	output := &Output{Response: resp}
	if h.places != nil && h.config.PersistPlaces && len(resp.GeoCollection.Features) > 0 {
		stored, err := h.places.UpsertFeatures(ctx, resp.GeoCollection.Features)
		if err != nil {
			h.logger.Warn("place persistence failed", map[string]interface{}{
				"requestId": resp.RequestID,
				"errorCode": string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
		}
		output.PlacesStored = stored
	}
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}
	err = h.sendWithRetry(ctx, "complete-job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey":    job.Key,
			"errorCode": string(errors.CodeOf(err)),
			"error":     err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":       job.Key,
		"requestId":    output.Response.RequestID,
		"success":      output.Response.Success,
		"placesStored": output.PlacesStored,
	})
}

// sendWithRetry resends a job command while the gateway reports a transient
// failure.
func (h *Handler) sendWithRetry(ctx context.Context, command string, send func(context.Context) error) error {
	return camunda.Retry(ctx, h.sendRetry, command, send)
}

// Execute runs a decoded request without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
