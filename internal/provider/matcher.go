package provider

import (
	"sort"
	"strings"
)

// Markers that stand in for keyword evidence.
const (
	MatchAllMarker         = "*"
	CategoryOverrideMarker = "(category override)"
)

// Match is a provider selected for a market title, with the evidence.
type Match struct {
	Provider        Provider
	MatchedKeywords []string
}

// Matcher ranks catalog providers against market titles. The catalog is
// never written after construction, so a Matcher is safe for concurrent use.
type Matcher struct {
	catalog *Catalog
}

// NewMatcher creates a Matcher over catalog.
func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Catalog returns the catalog the matcher ranks.
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// Match returns the providers relevant to marketTitle, most matched keywords
// first; ties keep catalog order. A non-empty category restricts matching to
// that category and admits its providers even without keyword evidence.
func (m *Matcher) Match(marketTitle, category string) []Match {
	title := strings.ToLower(marketTitle)
	results := []Match{}

	for _, p := range m.catalog.Providers() {
		if category != "" && p.Category != category {
			continue
		}

		if p.MatchAll {
			results = append(results, Match{Provider: p, MatchedKeywords: []string{MatchAllMarker}})
			continue
		}

		matched := matchKeywords(title, p.Keywords)

		switch {
		case len(matched) > 0:
			results = append(results, Match{Provider: p, MatchedKeywords: matched})
		case category != "":
			results = append(results, Match{Provider: p, MatchedKeywords: []string{CategoryOverrideMarker}})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return len(results[i].MatchedKeywords) > len(results[j].MatchedKeywords)
	})

	return results
}

// matchKeywords returns the keywords that occur in the lower-cased title, in
// keyword order.
func matchKeywords(title string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
