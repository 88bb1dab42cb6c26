package extractor

// Vocabulary is the fixed rule set an Extractor matches against.
type Vocabulary struct {
	Cities     []string
	Categories []string
	Metrics    []string
	Timeframes []string
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Cities:     append([]string{}, knownCities...),
		Categories: append([]string{}, categories...),
		Metrics:    append([]string{}, metrics...),
		Timeframes: append([]string{}, timeframes...),
	}
}

var knownCities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia",
	"San Antonio", "San Diego", "Dallas", "San Jose", "Austin", "Jacksonville",
	"San Francisco", "Columbus", "Seattle", "Denver", "Boston", "Nashville",
	"Portland", "Las Vegas", "Miami", "Atlanta", "New Orleans", "Washington",
	"Detroit", "Minneapolis", "Baltimore", "Pittsburgh", "Salt Lake City",
	"London", "Paris", "Tokyo", "Berlin", "Madrid", "Rome", "Toronto",
	"Vancouver", "Sydney", "Melbourne", "Dubai", "Singapore", "Mumbai",
	"Barcelona", "Amsterdam", "Dublin", "Mexico City",
}

var categories = []string{
	"restaurant", "cafe", "coffee shop", "hotel", "bar", "museum", "park",
	"store", "gym", "hospital", "school", "pharmacy", "bakery", "theater",
	"library",
}

var metrics = []string{"average", "count", "sum", "max", "min", "total"}

var timeframes = []string{
	"today", "tomorrow", "tonight", "this week", "weekend", "next week", "this month",
}

// leadingVerbs are trimmed from the front of landmark phrases so that
// "Find Times Square" yields "Times Square".
var leadingVerbs = map[string]bool{
	"find": true, "show": true, "search": true, "locate": true, "where": true,
	"what": true, "tell": true, "map": true, "plot": true, "get": true,
	"list": true, "visualize": true, "give": true, "is": true, "are": true,
	"how": true, "near": true, "around": true, "the": true, "explain": true,
	"describe": true,
}

var landmarkSuffixes = []string{
	"Park", "Bridge", "Plaza", "Square", "Center", "Centre", "Tower", "Station",
	"Market", "Garden", "Gardens", "Beach", "Mall", "Stadium", "Airport",
	"Hall", "Lake", "Harbor", "Pier", "Cathedral", "Palace",
}

var streetSuffixes = []string{
	"Street", "St", "Avenue", "Ave", "Road", "Rd", "Boulevard", "Blvd",
	"Drive", "Dr", "Lane", "Ln", "Way", "Court", "Ct", "Place", "Pl",
}
