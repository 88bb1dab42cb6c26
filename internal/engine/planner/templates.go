package planner

import "query-orchestrator/internal/models"

// Phase names.
const (
	PhasePlan         = "plan"
	PhaseCollect      = "collect"
	PhaseMap          = "map"
	PhaseSummarize    = "summarize"
	PhaseGeospatial   = "geospatial"
	PhaseDirectSearch = "direct-search"
	PhaseAggregate    = "aggregate"
)

// Reasoning roles.
const (
	RolePlanner      = "planner"
	RoleCollector    = "collector"
	RoleMapFormatter = "map-formatter"
	RoleSummarizer   = "summarizer"
	RoleSearcher     = "searcher"
	RoleAnalyst      = "analyst"
)

// Operation IDs attached to phases as capabilities.
const (
	OpPlaceSearch    = "place-search"
	OpWeather        = "weather"
	OpEvents         = "events"
	OpGeocode        = "geocode"
	OpAggregateStats = "aggregate-stats"
)

// PhaseTemplate is a phase before capabilities are resolved for a query.
type PhaseTemplate struct {
	Name         string   `json:"name"`
	Executor     string   `json:"executor"`
	Dependencies []string `json:"dependencies"`
	Parallel     bool     `json:"parallel"`
	// MappingOnly phases are dropped unless the analysis requires mapping.
	MappingOnly bool `json:"mappingOnly,omitempty"`
}

type Template struct {
	QueryType models.QueryType `json:"queryType"`
	Phases    []PhaseTemplate  `json:"phases"`
}

func comprehensiveTemplate(qt models.QueryType) Template {
	return Template{
		QueryType: qt,
		Phases: []PhaseTemplate{
			{Name: PhasePlan, Executor: RolePlanner},
			{Name: PhaseCollect, Executor: RoleCollector, Dependencies: []string{PhasePlan}},
			{Name: PhaseMap, Executor: RoleMapFormatter, Dependencies: []string{PhaseCollect}, Parallel: true, MappingOnly: true},
			{Name: PhaseSummarize, Executor: RoleSummarizer, Dependencies: []string{PhaseCollect}, Parallel: true},
		},
	}
}

func defaultTemplates() map[models.QueryType]Template {
	return map[models.QueryType]Template{
		models.QueryTypeComprehensive: comprehensiveTemplate(models.QueryTypeComprehensive),
		models.QueryTypeLocationBased: comprehensiveTemplate(models.QueryTypeLocationBased),
		models.QueryTypeMapDataOnly: {
			QueryType: models.QueryTypeMapDataOnly,
			Phases: []PhaseTemplate{
				{Name: PhasePlan, Executor: RolePlanner},
				{Name: PhaseGeospatial, Executor: RoleMapFormatter, Dependencies: []string{PhasePlan}},
			},
		},
		models.QueryTypeSearchOnly: {
			QueryType: models.QueryTypeSearchOnly,
			Phases: []PhaseTemplate{
				{Name: PhaseDirectSearch, Executor: RoleSearcher},
				{Name: PhaseMap, Executor: RoleMapFormatter, Dependencies: []string{PhaseDirectSearch}, MappingOnly: true},
			},
		},
		models.QueryTypeAnalytics: {
			QueryType: models.QueryTypeAnalytics,
			Phases: []PhaseTemplate{
				{Name: PhasePlan, Executor: RolePlanner},
				{Name: PhaseAggregate, Executor: RoleAnalyst, Dependencies: []string{PhasePlan}},
				{Name: PhaseSummarize, Executor: RoleSummarizer, Dependencies: []string{PhaseAggregate}, Parallel: true},
				{Name: PhaseMap, Executor: RoleMapFormatter, Dependencies: []string{PhaseAggregate}, Parallel: true, MappingOnly: true},
			},
		},
	}
}
