package models

import "fmt"

type QueryType string

const (
	QueryTypeSearchOnly    QueryType = "SEARCH_ONLY"
	QueryTypeMapDataOnly   QueryType = "MAP_DATA_ONLY"
	QueryTypeComprehensive QueryType = "COMPREHENSIVE"
	QueryTypeAnalytics     QueryType = "ANALYTICS"
	QueryTypeLocationBased QueryType = "LOCATION_BASED"
)

// AllQueryTypes lists every query type in declaration order.
var AllQueryTypes = []QueryType{
	QueryTypeSearchOnly,
	QueryTypeMapDataOnly,
	QueryTypeComprehensive,
	QueryTypeAnalytics,
	QueryTypeLocationBased,
}

// Intent returns the lower-case intent label reported in response metadata.
func (q QueryType) Intent() string {
	switch q {
	case QueryTypeSearchOnly:
		return "search"
	case QueryTypeMapDataOnly:
		return "map_data"
	case QueryTypeComprehensive:
		return "comprehensive"
	case QueryTypeAnalytics:
		return "analytics"
	case QueryTypeLocationBased:
		return "location_based"
	default:
		return "unknown"
	}
}

func (q QueryType) Valid() bool {
	for _, t := range AllQueryTypes {
		if t == q {
			return true
		}
	}
	return false
}

// ParseQueryType accepts either the enum value or its intent label.
func ParseQueryType(s string) (QueryType, error) {
	for _, t := range AllQueryTypes {
		if string(t) == s || t.Intent() == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown query type %q", s)
}
