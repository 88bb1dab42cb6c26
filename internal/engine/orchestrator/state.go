package orchestrator

import (
	"fmt"

	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

// transitions lists the states each state may move to. PREWARMED is optional,
// and FAILED is reachable until planning has succeeded.
var transitions = map[models.RequestState][]models.RequestState{
	models.StateReceived:    {models.StateAnalyzed, models.StateFailed},
	models.StateAnalyzed:    {models.StateEnriched, models.StateFailed},
	models.StateEnriched:    {models.StatePlanned, models.StateFailed},
	models.StatePlanned:     {models.StatePrewarmed, models.StateExecuting},
	models.StatePrewarmed:   {models.StateExecuting},
	models.StateExecuting:   {models.StateSynthesized},
	models.StateSynthesized: {models.StateDone},
}

// requestState tracks one request through its lifecycle.
type requestState struct {
	current models.RequestState
	history []models.RequestState
	log     logger.Logger
}

func newRequestState(log logger.Logger) *requestState {
	return &requestState{
		current: models.StateReceived,
		history: []models.RequestState{models.StateReceived},
		log:     log,
	}
}

func (s *requestState) advance(next models.RequestState) error {
	for _, allowed := range transitions[s.current] {
		if allowed == next {
			s.log.Debug("request state changed", map[string]interface{}{"from": string(s.current), "to": string(next)})
			s.current = next
			s.history = append(s.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid request state transition %s -> %s", s.current, next)
}

// to advances and logs a rejected transition instead of returning it.
func (s *requestState) to(next models.RequestState) {
	if err := s.advance(next); err != nil {
		s.log.Error("request state machine violated", map[string]interface{}{"error": err.Error()})
	}
}
