package orchestrator

import (
	"strconv"
	"strings"

	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/models"
)

// Cache strategies.
const (
	CacheStandard   = "standard"
	CacheAggressive = "aggressive"
	CacheMinimal    = "minimal"
	CacheNone       = "none"
)

const (
	focusIntentBoost   = 0.2
	focusCategoryBoost = 0.1
)

type UserLocation struct {
	Name string   `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// Label is the location entity injected for this user location: its name, or
// "lat,lon" when only coordinates are known.
func (u *UserLocation) Label() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if u.Lat == nil || u.Lon == nil {
		return ""
	}
	return strconv.FormatFloat(*u.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(*u.Lon, 'f', -1, 64)
}

type Preferences struct {
	CacheStrategy      string `json:"cacheStrategy,omitempty"`
	ResponseFormat     string `json:"responseFormat,omitempty"`
	MaxExecutionTimeMs int    `json:"maxExecutionTimeMs,omitempty"`
}

type Context struct {
	UserLocation *UserLocation `json:"userLocation,omitempty"`
	DomainFocus  string        `json:"domainFocus,omitempty"`
}

// Request is one call to Handle.
type Request struct {
	Query       string      `json:"query"`
	SessionID   string      `json:"sessionId,omitempty"`
	Preferences Preferences `json:"preferences"`
	Context     Context     `json:"context"`
}

// fetchOptions maps a cache strategy onto per-call cache behaviour.
func fetchOptions(strategy string) cache.FetchOptions {
	switch strategy {
	case CacheAggressive:
		return cache.FetchOptions{TTLScale: 2}
	case CacheNone:
		return cache.FetchOptions{Bypass: true}
	default:
		return cache.FetchOptions{}
	}
}

func prewarmEnabled(strategy string) bool {
	return strategy != CacheNone && strategy != CacheMinimal
}

// enrich applies the caller's context to the analysis: a user location fills
// in for a missing location entity, and a domain focus matching the intent or
// an extracted category raises confidence.
func enrich(analysis *models.QueryAnalysis, rc Context) error {
	entities := analysis.Entities.Clone()
	if len(entities.Locations) == 0 {
		if label := rc.UserLocation.Label(); label != "" {
			entities.Locations = []string{label}
		}
	}

	delta := 0.0
	if focus := strings.ToLower(strings.TrimSpace(rc.DomainFocus)); focus != "" {
		switch {
		case focus == analysis.Type.Intent() || strings.EqualFold(focus, string(analysis.Type)):
			delta = focusIntentBoost
		case containsFold(entities.Categories, focus):
			delta = focusCategoryBoost
		}
	}
	return analysis.Enrich(entities, delta)
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
