package validation

// FeatureCollectionSchema accepts a GeoJSON FeatureCollection whose features
// carry a geometry with a type and coordinates.
const FeatureCollectionSchema = `{
  "type": "object",
  "required": ["type", "features"],
  "properties": {
    "type": {"const": "FeatureCollection"},
    "features": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "geometry"],
        "properties": {
          "type": {"const": "Feature"},
          "geometry": {
            "type": "object",
            "required": ["type", "coordinates"],
            "properties": {
              "type": {"enum": ["Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon"]},
              "coordinates": {"type": "array"}
            }
          },
          "properties": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var featureCollection = MustCompile(FeatureCollectionSchema)

// IsFeatureCollection reports whether v is a well-formed FeatureCollection.
func IsFeatureCollection(v interface{}) bool {
	if v == nil {
		return false
	}
	return featureCollection.Validate(v).Valid
}
