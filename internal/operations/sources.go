package operations

import (
	"database/sql"

	"github.com/elastic/go-elasticsearch/v8"

	"query-orchestrator/internal/common/logger"
)

// Sources lists the backends available to a deployment. Unconfigured
// sources are left out of the registry and their operations fail as unknown.
type Sources struct {
	Search      *elasticsearch.Client
	PlacesIndex string
	DB          *sql.DB

	Weather           HTTPConfig
	Events            HTTPConfig
	Geocode           HTTPConfig
	IPGeolocation     HTTPConfig
	Photos            HTTPConfig
	WebSearch         HTTPConfig
	WebSearchEngineID string
}

// NewFromSources registers every operation whose backend is configured.
func NewFromSources(s Sources, log logger.Logger) *Registry {
	r := NewRegistry(log)
	if s.Search != nil {
		r.Register(IDPlaceSearch, NewPlaceSearch(s.Search, s.PlacesIndex))
	}
	if s.DB != nil {
		r.Register(IDAggregateStats, NewAggregateStats(s.DB))
	}
	if s.Weather.BaseURL != "" {
		r.Register(IDWeather, NewWeather(s.Weather))
	}
	if s.Events.BaseURL != "" {
		r.Register(IDEvents, NewEvents(s.Events))
	}
	if s.Geocode.BaseURL != "" {
		r.Register(IDGeocode, NewGeocode(s.Geocode))
	}
	if s.IPGeolocation.BaseURL != "" {
		r.Register(IDIPGeolocation, NewIPGeolocation(s.IPGeolocation))
	}
	if s.Photos.BaseURL != "" {
		r.Register(IDPhotos, NewPhotos(s.Photos))
	}
	if s.WebSearch.BaseURL != "" {
		r.Register(IDWebSearch, NewWebSearch(s.WebSearch, s.WebSearchEngineID))
	}
	r.logger.Info("operations registered", map[string]interface{}{"operations": r.IDs()})
	return r
}
