// Package extractor pulls locations, categories, metrics and timeframes out of
// free-form query text with fixed pattern rules.
package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"query-orchestrator/internal/models"
)

// Extractor is safe for concurrent use; it holds only compiled patterns.
type Extractor struct {
	vocab        Vocabulary
	cityPatterns []*regexp.Regexp
	landmark     *regexp.Regexp
	preposition  *regexp.Regexp
	cityState    *regexp.Regexp
	coordinates  *regexp.Regexp
	street       *regexp.Regexp
}

func New() *Extractor {
	return NewWithVocabulary(DefaultVocabulary())
}

func NewWithVocabulary(vocab Vocabulary) *Extractor {
	e := &Extractor{
		vocab:       vocab,
		landmark:    regexp.MustCompile(`\b((?:[A-Z][A-Za-z'.&-]*\s+)+(?:` + strings.Join(landmarkSuffixes, "|") + `))\b`),
		preposition: regexp.MustCompile(`\b(?i:in|near|at|around|by)\s+([A-Z][A-Za-z'.-]*(?:\s+[A-Z][A-Za-z'.-]*)*)`),
		cityState:   regexp.MustCompile(`\b([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*),\s*([A-Z]{2})\b`),
		coordinates: regexp.MustCompile(`(-?\d{1,2}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`),
		street: regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Z][A-Za-z]*\s+){1,4}(?:` +
			strings.Join(streetSuffixes, "|") + `)\b\.?`),
	}
	for _, city := range vocab.Cities {
		e.cityPatterns = append(e.cityPatterns, wordPattern(city))
	}
	return e
}

func wordPattern(phrase string) *regexp.Regexp {
	parts := strings.Fields(phrase)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
}

// Extract is deterministic for a given text and vocabulary.
func (e *Extractor) Extract(text string) models.Entities {
	return models.Entities{
		Locations:  e.locations(text),
		Categories: substringMatches(text, e.vocab.Categories),
		Metrics:    substringMatches(text, e.vocab.Metrics),
		Timeframes: substringMatches(text, e.vocab.Timeframes),
	}
}

func (e *Extractor) locations(text string) []string {
	set := newOrderedSet()

	set.addAll(e.knownCities(text))
	for _, m := range e.landmark.FindAllStringSubmatch(text, -1) {
		if phrase := trimLeadingVerbs(m[1]); phrase != "" {
			set.add(phrase)
		}
	}
	for _, m := range e.preposition.FindAllStringSubmatch(text, -1) {
		set.add(m[1])
	}
	for _, m := range e.cityState.FindAllStringSubmatch(text, -1) {
		set.add(m[1] + ", " + m[2])
	}
	for _, m := range e.coordinates.FindAllStringSubmatch(text, -1) {
		if validCoordinates(m[1], m[2]) {
			set.add(m[1] + "," + m[2])
		}
	}
	for _, m := range e.street.FindAllString(text, -1) {
		set.add(strings.TrimSuffix(m, "."))
	}

	return set.items
}

// knownCities returns canonical city names ordered by first occurrence.
func (e *Extractor) knownCities(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for i, re := range e.cityPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{name: e.vocab.Cities[i], pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func trimLeadingVerbs(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 1 && leadingVerbs[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) < 2 {
		return ""
	}
	return strings.Join(words, " ")
}

func validCoordinates(latStr, lonStr string) bool {
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func substringMatches(text string, vocab []string) []string {
	lower := strings.ToLower(text)
	out := []string{}
	for _, term := range vocab {
		if strings.Contains(lower, term) {
			out = append(out, term)
		}
	}
	return out
}

// NormalizeKey is the dedup key for locations: lower-cased with whitespace
// collapsed.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}, items: []string{}}
}

func (s *orderedSet) add(v string) {
	v = strings.Join(strings.Fields(v), " ")
	key := NormalizeKey(v)
	if key == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, v)
}

func (s *orderedSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}
