package research

import "fmt"

// DefaultQueries is how many queries a research run sends when the caller
// does not say.
const DefaultQueries = 5

var baselineTemplates = []string{
	"Latest news and developments: %s",
	"Expert analysis and predictions: %s",
	"Historical data and trends: %s",
	"Risk factors and uncertainties: %s",
	"Recent events affecting: %s",
}

var categoryTemplates = map[string][]string{
	"crypto": {
		"%s - technical analysis and price targets",
		"%s - whale activity and institutional interest",
	},
	"sports": {
		"%s - injury reports and team news",
		"%s - betting odds movement and sharp money",
	},
	"weather": {
		"%s - forecast models and confidence levels",
		"%s - historical weather patterns",
	},
	"politics": {
		"%s - polling data and trends",
		"%s - key demographics and swing factors",
	},
}

// GenerateQueries returns every query for a market: the baseline set, then
// the category's own templates when category is one of crypto, sports,
// weather or politics.
func GenerateQueries(marketTitle, category string) []string {
	templates := append([]string{}, baselineTemplates...)
	templates = append(templates, categoryTemplates[category]...)

	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, fmt.Sprintf(tpl, marketTitle))
	}
	return out
}

// PlanQueries returns the first n generated queries, DefaultQueries when n
// is not positive. Order is never changed.
func PlanQueries(marketTitle, category string, n int) []string {
	if n <= 0 {
		n = DefaultQueries
	}
	queries := GenerateQueries(marketTitle, category)
	if n < len(queries) {
		queries = queries[:n]
	}
	return queries
}
