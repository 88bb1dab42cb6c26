package classifier

import (
	"regexp"
	"strings"
)

var (
	mappingKeywords   = []string{"map", "show", "plot", "visualize", "geojson", "coordinates"}
	areaKeywords      = []string{"area", "around", "near", "location", "suitability", "competition", "analyze"}
	analyticsKeywords = []string{"average", "count", "sum", "how many", "statistics", "foot traffic", "busy"}
	searchKeywords    = []string{"find", "search", "look for", "locate"}
	summaryKeywords   = []string{"tell me", "explain", "describe", "what", "how"}
	liveDataKeywords  = []string{"weather", "event"}
)

// keywordSet matches any of its phrases case-insensitively where a word
// starts with the phrase, so "maps", "showing" and "nearby" all match. A
// final "e" may be replaced by "ing" so "visualizing" matches "visualize".
// Words that only end with a phrase, like "bitmap", do not match.
type keywordSet struct {
	re *regexp.Regexp
}

func newKeywordSet(phrases []string) keywordSet {
	alts := make([]string, len(phrases))
	for i, p := range phrases {
		words := strings.Fields(p)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		last := words[len(words)-1]
		if len(last) > 3 && strings.HasSuffix(last, "e") {
			words[len(words)-1] = strings.TrimSuffix(last, "e") + "(?:e|ing)"
		}
		alts[i] = strings.Join(words, `\s+`)
	}
	return keywordSet{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)`)}
}

func (k keywordSet) matches(text string) bool {
	return k.re.MatchString(text)
}

var (
	mapping   = newKeywordSet(mappingKeywords)
	area      = newKeywordSet(areaKeywords)
	analytics = newKeywordSet(analyticsKeywords)
	search    = newKeywordSet(searchKeywords)
	summary   = newKeywordSet(summaryKeywords)
	liveData  = newKeywordSet(liveDataKeywords)
)
