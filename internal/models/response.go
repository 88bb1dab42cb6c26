package models

// Request states, in the order a request moves through them.
type RequestState string

const (
	StateReceived    RequestState = "RECEIVED"
	StateAnalyzed    RequestState = "ANALYZED"
	StateEnriched    RequestState = "ENRICHED"
	StatePlanned     RequestState = "PLANNED"
	StatePrewarmed   RequestState = "PREWARMED"
	StateExecuting   RequestState = "EXECUTING"
	StateSynthesized RequestState = "SYNTHESIZED"
	StateDone        RequestState = "DONE"
	StateFailed      RequestState = "FAILED"
)

type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// NewPointFeature builds a GeoJSON Point. GeoJSON orders coordinates lon, lat.
func NewPointFeature(lat, lon float64, props map[string]interface{}) Feature {
	if props == nil {
		props = map[string]interface{}{}
	}
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: []float64{lon, lat}},
		Properties: props,
	}
}

// Point returns the lat/lon of a Point feature.
func (f Feature) Point() (lat, lon float64, ok bool) {
	if f.Geometry.Type != "Point" {
		return 0, 0, false
	}
	switch c := f.Geometry.Coordinates.(type) {
	case []float64:
		if len(c) >= 2 {
			return c[1], c[0], true
		}
	case []interface{}:
		if len(c) >= 2 {
			x, okx := c[0].(float64)
			y, oky := c[1].(float64)
			if okx && oky {
				return y, x, true
			}
		}
	}
	return 0, 0, false
}

type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type GeoCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	Bounds   *Bounds   `json:"bounds"`
	Center   *Center   `json:"center"`
}

type Recommendations struct {
	RelatedQueries   []string `json:"relatedQueries"`
	SuggestedActions []string `json:"suggestedActions"`
}

type ResponseMetadata struct {
	ExecutionTimeMs  int64        `json:"executionTimeMs"`
	ExecutorsUsed    []string     `json:"executorsUsed"`
	CacheHits        int          `json:"cacheHits"`
	ParallelPhases   int          `json:"parallelPhases"`
	Confidence       float64      `json:"confidence"`
	Intent           string       `json:"intent"`
	DetectedEntities []string     `json:"detectedEntities"`
	State            RequestState `json:"state"`
	Plan             []string     `json:"plan,omitempty"`
	Truncated        bool         `json:"truncated,omitempty"`
	SummarySource    string       `json:"summarySource,omitempty"`
}

type SynthesizedResponse struct {
	RequestID         string                 `json:"requestId"`
	SessionID         string                 `json:"sessionId,omitempty"`
	Success           bool                   `json:"success"`
	QueryType         QueryType              `json:"queryType"`
	ExtractedEntities Entities               `json:"extractedEntities"`
	SummaryText       string                 `json:"summaryText"`
	GeoCollection     GeoCollection          `json:"geoCollection"`
	RawData           map[string]interface{} `json:"rawData,omitempty"`
	Metadata          ResponseMetadata       `json:"metadata"`
	Recommendations   Recommendations        `json:"recommendations"`
	Errors            []PhaseError           `json:"errors,omitempty"`
}
