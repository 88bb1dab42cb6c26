// Package planner maps a query analysis onto a validated execution plan.
package planner

import (
	"regexp"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/models"
)

const (
	baseEstimateMs     = 2000
	perPhaseEstimateMs = 1500
)

var (
	mentionsWeather = regexp.MustCompile(`(?i)\bweather\b`)
	mentionsEvents  = regexp.MustCompile(`(?i)\bevents?\b`)
)

type Planner struct {
	templates map[models.QueryType]Template
	logger    logger.Logger
}

type Option func(*Planner)

func WithLogger(log logger.Logger) Option {
	return func(p *Planner) { p.logger = log }
}

// WithTemplate registers or replaces the template for t.QueryType.
func WithTemplate(t Template) Option {
	return func(p *Planner) { p.templates[t.QueryType] = t }
}

func New(opts ...Option) *Planner {
	p := &Planner{
		templates: defaultTemplates(),
		logger:    logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Templates returns a copy of the registered templates.
func (p *Planner) Templates() map[models.QueryType]Template {
	out := make(map[models.QueryType]Template, len(p.templates))
	for k, t := range p.templates {
		out[k] = Template{QueryType: t.QueryType, Phases: append([]PhaseTemplate{}, t.Phases...)}
	}
	return out
}

// Plan instantiates the template for the analysis type and validates it.
func (p *Planner) Plan(analysis *models.QueryAnalysis) (*models.ExecutionPlan, error) {
	tmpl, ok := p.templates[analysis.Type]
	if !ok {
		return nil, errors.NewPlanningError(string(analysis.Type), nil)
	}

	phases := make([]models.Phase, 0, len(tmpl.Phases))
	for _, pt := range tmpl.Phases {
		if pt.MappingOnly && !analysis.RequiresMapping {
			continue
		}
		phases = append(phases, models.Phase{
			Name:         pt.Name,
			Executor:     pt.Executor,
			Capabilities: capabilitiesFor(pt.Name, analysis),
			Dependencies: append([]string{}, pt.Dependencies...),
			Parallel:     pt.Parallel,
		})
	}

	plan, err := models.NewExecutionPlan(phases, baseEstimateMs+perPhaseEstimateMs*len(phases))
	if err != nil {
		return nil, errors.NewPlanningError(string(analysis.Type), err)
	}

	p.logger.Debug("plan built", map[string]interface{}{
		"queryType":      string(analysis.Type),
		"phases":         plan.PhaseNames(),
		"parallelizable": plan.Parallelizable,
	})
	return plan, nil
}

// capabilitiesFor resolves the external operations a phase runs for this
// analysis.
func capabilitiesFor(phase string, a *models.QueryAnalysis) []string {
	hasLocations := len(a.Entities.Locations) > 0
	hasTimeframe := len(a.Entities.Timeframes) > 0

	caps := []string{}
	switch phase {
	case PhaseCollect:
		caps = append(caps, OpPlaceSearch)
		if hasTimeframe || mentionsWeather.MatchString(a.Query) {
			caps = append(caps, OpWeather)
		}
		if hasTimeframe || mentionsEvents.MatchString(a.Query) {
			caps = append(caps, OpEvents)
		}
	case PhaseDirectSearch:
		caps = append(caps, OpPlaceSearch)
	case PhaseGeospatial:
		caps = append(caps, OpPlaceSearch)
		if hasLocations {
			caps = append(caps, OpGeocode)
		}
	case PhaseMap:
		if hasLocations {
			caps = append(caps, OpGeocode)
		}
	case PhaseAggregate:
		caps = append(caps, OpAggregateStats)
	}
	return caps
}
