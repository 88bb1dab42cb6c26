package synthesizer

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"query-orchestrator/internal/common/validation"
	"query-orchestrator/internal/models"
)

var (
	coordinatePairs = [][2]string{{"lat", "lon"}, {"lat", "lng"}, {"latitude", "longitude"}}
	featureProps    = []string{"id", "name", "title", "category", "address", "description"}
)

// featureCollectionFrom decodes a validated FeatureCollection payload.
func featureCollectionFrom(payload interface{}) ([]models.Feature, bool) {
	if !validation.IsFeatureCollection(payload) {
		return nil, false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	var fc struct {
		Features []models.Feature `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, false
	}
	if fc.Features == nil {
		fc.Features = []models.Feature{}
	}
	return fc.Features, true
}

// pointScanner collects one Point feature per point-like record, skipping
// repeats of the same place.
type pointScanner struct {
	features []models.Feature
	seen     map[string]bool
}

func newPointScanner() *pointScanner {
	return &pointScanner{features: []models.Feature{}, seen: make(map[string]bool)}
}

func (s *pointScanner) scan(v interface{}, source string) {
	s.walk(generic(v), source)
}

func (s *pointScanner) walk(v interface{}, source string) {
	switch t := v.(type) {
	case map[string]interface{}:
		if s.record(t, source) {
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.walk(t[k], source)
		}
	case []interface{}:
		for _, item := range t {
			s.walk(item, source)
		}
	}
}

// record adds a feature when m is point-like and reports whether it was.
func (s *pointScanner) record(m map[string]interface{}, source string) bool {
	if m["type"] == "Feature" {
		geometry, _ := m["geometry"].(map[string]interface{})
		lat, lon, ok := geoJSONPoint(geometry)
		if !ok {
			return false
		}
		props, _ := m["properties"].(map[string]interface{})
		s.add(lat, lon, copyProps(props), source)
		return true
	}
	if lat, lon, ok := geoJSONPoint(m); ok {
		s.add(lat, lon, map[string]interface{}{}, source)
		return true
	}
	for _, pair := range coordinatePairs {
		lat, okLat := number(m[pair[0]])
		lon, okLon := number(m[pair[1]])
		if okLat && okLon && validCoordinate(lat, lon) {
			props := make(map[string]interface{})
			for _, key := range featureProps {
				if val, ok := m[key]; ok {
					props[key] = val
				}
			}
			s.add(lat, lon, props, source)
			return true
		}
	}
	return false
}

func (s *pointScanner) add(lat, lon float64, props map[string]interface{}, source string) {
	key := fmt.Sprintf("%.6f,%.6f,%v", lat, lon, props["name"])
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	props["source"] = source
	s.features = append(s.features, models.NewPointFeature(lat, lon, props))
}

func geoJSONPoint(m map[string]interface{}) (lat, lon float64, ok bool) {
	if m == nil || m["type"] != "Point" {
		return 0, 0, false
	}
	coords, isList := m["coordinates"].([]interface{})
	if !isList || len(coords) < 2 {
		return 0, 0, false
	}
	lon, okLon := number(coords[0])
	lat, okLat := number(coords[1])
	if !okLon || !okLat || !validCoordinate(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func validCoordinate(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}

// generic converts typed values into the map/slice shape JSON decoding
// produces, so the scanner only has to understand one representation.
func generic(v interface{}) interface{} {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}, string, float64, bool:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// boundsAndCenter computes the bounding box and mean position of all Point
// features. Both are nil when there are none.
func boundsAndCenter(features []models.Feature) (*models.Bounds, *models.Center) {
	var (
		bounds         *models.Bounds
		sumLat, sumLon float64
		n              int
	)
	for _, f := range features {
		lat, lon, ok := f.Point()
		if !ok {
			continue
		}
		if bounds == nil {
			bounds = &models.Bounds{North: lat, South: lat, East: lon, West: lon}
		} else {
			bounds.North = math.Max(bounds.North, lat)
			bounds.South = math.Min(bounds.South, lat)
			bounds.East = math.Max(bounds.East, lon)
			bounds.West = math.Min(bounds.West, lon)
		}
		sumLat += lat
		sumLon += lon
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return bounds, &models.Center{Lat: sumLat / float64(n), Lon: sumLon / float64(n)}
}
