package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polyinsider/wwatcher/internal/fetch"
	"github.com/polyinsider/wwatcher/internal/metrics"
	"github.com/polyinsider/wwatcher/internal/provider"
)

const (
	// DefaultPause separates consecutive research queries.
	DefaultPause = 500 * time.Millisecond

	fallbackCategory = "general"
)

// ErrEmptyMarketTitle is returned when a research run has no market title.
var ErrEmptyMarketTitle = errors.New("market title required")

// Asker sends one research query.
type Asker interface {
	Ask(ctx context.Context, query string) Answer
}

// Request describes one research run. Queries is the number of research
// queries to send; zero means DefaultQueries.
type Request struct {
	MarketTitle string
	Category    string
	Queries     int
}

// ProviderRef names a matched provider in a report.
type ProviderRef struct {
	Key             string   `json:"key"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	KeywordsMatched []string `json:"keywords_matched"`
}

// StructuredData holds the provider side of a report.
type StructuredData struct {
	ProvidersMatched []ProviderRef  `json:"providers_matched"`
	Results          []fetch.Result `json:"results"`
}

// Findings holds the research-assistant side of a report.
type Findings struct {
	QueriesRun int      `json:"queries_run"`
	Results    []Answer `json:"results"`
}

// ReportSummary counts what went into a report.
type ReportSummary struct {
	DataSources       int `json:"data_sources"`
	ProvidersMatched  int `json:"providers_matched"`
	QueriesRun        int `json:"queries_run"`
	SuccessfulQueries int `json:"successful_queries"`
	FailedQueries     int `json:"failed_queries"`
}

// Report is the combined output of a research run.
type Report struct {
	ID             string         `json:"id"`
	MarketTitle    string         `json:"market_title"`
	Category       string         `json:"category"`
	Timestamp      string         `json:"timestamp"`
	StructuredData StructuredData `json:"structured_data"`
	Research       Findings       `json:"research"`
	Summary        ReportSummary  `json:"summary"`
}

// Orchestrator joins provider matching and dispatch with a sequential run of
// research queries.
type Orchestrator struct {
	matcher    *provider.Matcher
	dispatcher *fetch.Dispatcher
	asker      Asker
	pause      time.Duration
	logger     *slog.Logger
	tracker    *metrics.Tracker

	now func() time.Time
}

// NewOrchestrator creates an Orchestrator. pause is the wait between
// consecutive queries; a negative value means DefaultPause. tracker may be
// nil.
func NewOrchestrator(matcher *provider.Matcher, dispatcher *fetch.Dispatcher, asker Asker, pause time.Duration, logger *slog.Logger, tracker *metrics.Tracker) *Orchestrator {
	if pause < 0 {
		pause = DefaultPause
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		matcher:    matcher,
		dispatcher: dispatcher,
		asker:      asker,
		pause:      pause,
		logger:     logger,
		tracker:    tracker,
		now:        time.Now,
	}
}

// Research builds a report for req. Provider fetches run in the background
// while the research queries are sent one at a time.
func (o *Orchestrator) Research(ctx context.Context, req Request) (*Report, error) {
	title := strings.TrimSpace(req.MarketTitle)
	if title == "" {
		return nil, ErrEmptyMarketTitle
	}

	start := o.now()
	matches := o.matcher.Match(title, req.Category)
	eligible := fetch.Eligible(matches, req.Category)

	var (
		wg      sync.WaitGroup
		results []fetch.Result
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results = o.dispatcher.Dispatch(ctx, eligible, title)
	}()

	queries := PlanQueries(title, req.Category, req.Queries)
	answers := o.RunQueries(ctx, queries)

	wg.Wait()

	report := &Report{
		ID:          uuid.NewString(),
		MarketTitle: title,
		Category:    resolveCategory(req.Category, matches),
		Timestamp:   start.UTC().Format(time.RFC3339),
		StructuredData: StructuredData{
			ProvidersMatched: ProviderRefs(matches),
			Results:          results,
		},
		Research: Findings{
			QueriesRun: len(answers),
			Results:    answers,
		},
	}

	ok := 0
	for _, a := range answers {
		if a.OK() {
			ok++
		}
	}
	report.Summary = ReportSummary{
		DataSources:       len(matches) + len(answers),
		ProvidersMatched:  len(matches),
		QueriesRun:        len(answers),
		SuccessfulQueries: ok,
		FailedQueries:     len(answers) - ok,
	}

	o.logger.Info("research_completed",
		"report_id", report.ID,
		"providers", len(matches),
		"queries", len(answers),
		"failed_queries", report.Summary.FailedQueries,
		"duration", o.now().Sub(start),
	)

	return report, nil
}

// RunQueries sends queries strictly in order, waiting the configured pause
// between consecutive ones. If ctx ends early the remaining queries are
// reported as failed, so the result always has one Answer per query.
func (o *Orchestrator) RunQueries(ctx context.Context, queries []string) []Answer {
	answers := make([]Answer, 0, len(queries))

	for i, q := range queries {
		if i > 0 {
			if err := sleep(ctx, o.pause); err != nil {
				for _, rest := range queries[i:] {
					answers = append(answers, Answer{Query: rest, Citations: []string{}, Error: err.Error()})
					o.tracker.IncResearchQuery(fetch.StatusError)
				}
				break
			}
		}

		ans := o.asker.Ask(ctx, q)
		if ans.Query == "" {
			ans.Query = q
		}
		if ans.OK() {
			o.tracker.IncResearchQuery(fetch.StatusOK)
		} else {
			o.tracker.IncResearchQuery(fetch.StatusError)
		}
		answers = append(answers, ans)
	}

	return answers
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// resolveCategory prefers the caller's category, then the best match's.
func resolveCategory(explicit string, matches []provider.Match) string {
	if explicit != "" {
		return explicit
	}
	if len(matches) > 0 && matches[0].Provider.Category != "" {
		return matches[0].Provider.Category
	}
	return fallbackCategory
}

// ProviderRefs describes matches for output.
func ProviderRefs(matches []provider.Match) []ProviderRef {
	refs := make([]ProviderRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ProviderRef{
			Key:             m.Provider.Key,
			Name:            m.Provider.Name,
			Category:        m.Provider.Category,
			KeywordsMatched: m.MatchedKeywords,
		})
	}
	return refs
}
