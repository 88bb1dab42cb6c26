package validation

// QueryRequestSchema describes the variables accepted by the
// orchestrate-query job.
const QueryRequestSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "sessionId": {"type": "string"},
    "preferences": {
      "type": "object",
      "properties": {
        "cacheStrategy": {"enum": ["standard", "aggressive", "minimal", "none"]},
        "responseFormat": {"enum": ["summary", "detailed"]},
        "maxExecutionTimeMs": {"type": "integer", "minimum": 0}
      }
    },
    "context": {
      "type": "object",
      "properties": {
        "domainFocus": {"type": "string"},
        "userLocation": {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "lat": {"type": "number", "minimum": -90, "maximum": 90},
            "lon": {"type": "number", "minimum": -180, "maximum": 180}
          }
        }
      }
    }
  }
}`

var queryRequest = MustCompile(QueryRequestSchema)

// ValidateQueryRequest validates raw job variables.
func ValidateQueryRequest(vars map[string]interface{}) *ValidationResult {
	return queryRequest.Validate(vars)
}
