package fetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyinsider/wwatcher/internal/metrics"
	"github.com/polyinsider/wwatcher/internal/provider"
)

// DefaultConcurrency bounds simultaneous provider calls.
const DefaultConcurrency = 8

// Fetcher performs one provider call.
type Fetcher interface {
	Fetch(ctx context.Context, m provider.Match, title string) Result
}

// Dispatcher fans a set of matches out to a Fetcher and joins the results.
type Dispatcher struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
	tracker     *metrics.Tracker
}

// NewDispatcher creates a Dispatcher. tracker may be nil.
func NewDispatcher(fetcher Fetcher, concurrency int, logger *slog.Logger, tracker *metrics.Tracker) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger,
		tracker:     tracker,
	}
}

// Eligible returns the matches that should actually be called. With an
// explicit category every match is eligible. Without one, match_all
// providers are dropped unless they are the only match.
func Eligible(matches []provider.Match, category string) []provider.Match {
	if category != "" || len(matches) == 1 {
		return matches
	}
	out := make([]provider.Match, 0, len(matches))
	for _, m := range matches {
		if !m.Provider.MatchAll {
			out = append(out, m)
		}
	}
	return out
}

// Dispatch calls every match concurrently and waits for all of them.
// results[i] always belongs to matches[i]. A failed call is recorded in its
// Result and never cancels the others.
func (d *Dispatcher) Dispatch(ctx context.Context, matches []provider.Match, title string) []Result {
	results := make([]Result, len(matches))
	if len(matches) == 0 {
		return results
	}

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			res := d.fetcher.Fetch(ctx, m, title)
			if res.Key == "" {
				res.Key = m.Provider.Key
			}
			results[i] = res

			d.tracker.ObserveFetch(m.Provider.Key, res.Status, time.Duration(res.DurationMS)*time.Millisecond)
			if !res.OK() {
				d.logger.Warn("provider_fetch_failed",
					"provider", m.Provider.Key,
					"http_status", res.HTTPStatus,
					"error", res.Error,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	d.logger.Info("providers_dispatched",
		"count", len(results),
		"failed", failed,
		"duration", time.Since(start),
	)

	return results
}
