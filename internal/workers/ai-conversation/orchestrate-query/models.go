package orchestratequery

import (
	"query-orchestrator/internal/engine/orchestrator"
	"query-orchestrator/internal/models"
)

// Input is the job's variables. It mirrors the orchestrator request.
type Input = orchestrator.Request

type Output struct {
	Response     *models.SynthesizedResponse `json:"response"`
	PlacesStored int                         `json:"placesStored"`
}
