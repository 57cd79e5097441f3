package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polyinsider/wwatcher/internal/config"
	"github.com/polyinsider/wwatcher/internal/detector"
	"github.com/polyinsider/wwatcher/internal/fetch"
	"github.com/polyinsider/wwatcher/internal/provider"
	"github.com/polyinsider/wwatcher/internal/research"
	"github.com/polyinsider/wwatcher/internal/store"
	"github.com/polyinsider/wwatcher/internal/ui"
)

type statusOutput struct {
	Status      string        `json:"status"`
	HistoryFile historyStatus `json:"history_file"`
	Alerts      alertsStatus  `json:"alerts"`
	Providers   catalogStatus `json:"providers"`
	APIKeys     keysStatus    `json:"api_keys"`
}

type historyStatus struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes"`
}

type alertsStatus struct {
	TotalLoaded     int                      `json:"total_loaded"`
	SkippedLines    int                      `json:"skipped_lines"`
	SkippedByReason map[store.SkipReason]int `json:"skipped_by_reason,omitempty"`
	LatestAlertTime *string                  `json:"latest_alert_time"`
	LoadError       string                   `json:"load_error,omitempty"`
}

type catalogStatus struct {
	ConfigPath string          `json:"config_path"`
	Found      bool            `json:"found"`
	Count      int             `json:"count"`
	Categories []string        `json:"categories"`
	List       []provider.Info `json:"list"`
	LoadError  string          `json:"load_error,omitempty"`
}

type keysStatus struct {
	RapidAPI   bool `json:"rapidapi"`
	Perplexity bool `json:"perplexity"`
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Health check: history file, alert count, providers, API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, loadErr := c.loadStore()

			out := statusOutput{
				Status: "running",
				HistoryFile: historyStatus{
					Path:      st.Path(),
					Exists:    st.Exists(),
					SizeBytes: st.SizeBytes(),
				},
				Alerts: alertsStatus{
					TotalLoaded:     st.Count(),
					SkippedLines:    st.Skipped(),
					SkippedByReason: st.SkippedByReason(),
				},
				Providers: catalogStatus{
					ConfigPath: c.cfg.ProvidersConfigPath,
					Categories: []string{},
					List:       []provider.Info{},
				},
				APIKeys: keysStatus{
					RapidAPI:   c.cfg.RapidAPIKey != "",
					Perplexity: c.cfg.PerplexityAPIKey != "",
				},
			}
			if latest, ok := st.LatestAlertTime(); ok {
				out.Alerts.LatestAlertTime = &latest
			}
			if loadErr != nil {
				out.Alerts.LoadError = loadErr.Error()
			}

			catalog, err := provider.LoadCatalog(c.cfg.ProvidersConfigPath)
			if err != nil {
				out.Providers.Found = true
				out.Providers.LoadError = err.Error()
			} else {
				out.Providers.Found = catalog.Found()
				out.Providers.Count = catalog.Len()
				out.Providers.Categories = catalog.Categories()
				out.Providers.List = catalog.List()
			}

			return writeJSON(c.stdout, out)
		},
	}
}

// alertWithIndicators adds detector findings to an alert in output.
type alertWithIndicators struct {
	store.Alert
	Indicators []detector.Finding `json:"indicators"`
}

func (c *cli) newAlertsCmd() *cobra.Command {
	var (
		filter     store.Filter
		minValue   float64
		indicators bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Query recent alerts with filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min") {
				filter.MinValue = &minValue
			}
			if filter.Limit <= 0 {
				filter.Limit = store.DefaultLimit
			}

			st, err := c.loadStore()
			if err != nil {
				return &cliError{err: err, help: "Check WWATCHER_HISTORY_PATH"}
			}
			alerts := st.Query(filter)

			out := map[string]any{
				"count":   len(alerts),
				"filters": filter,
			}
			if indicators {
				det := detector.NewDetector(detector.ThresholdsFromConfig(c.cfg), st.All())
				withIndicators := make([]alertWithIndicators, 0, len(alerts))
				for _, a := range alerts {
					withIndicators = append(withIndicators, alertWithIndicators{Alert: a, Indicators: det.Detect(a)})
				}
				out["alerts"] = withIndicators
			} else {
				out["alerts"] = alerts
			}

			return writeJSON(c.stdout, out)
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", store.DefaultLimit, "max alerts to return")
	cmd.Flags().StringVarP(&filter.Platform, "platform", "p", "", "filter by platform (polymarket, kalshi)")
	cmd.Flags().StringVarP(&filter.AlertType, "type", "t", "", "filter by alert type (WHALE_ENTRY, WHALE_EXIT)")
	cmd.Flags().Float64VarP(&minValue, "min", "m", 0, "minimum transaction value in USD")
	cmd.Flags().StringVarP(&filter.Since, "since", "s", "", "only alerts at or after this ISO-8601 timestamp")
	cmd.Flags().BoolVar(&indicators, "indicators", false, "attach anomaly indicators to each alert")

	return cmd
}

func (c *cli) newSummaryCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate stats: volume, top markets, whale counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if top <= 0 {
				top = c.cfg.TopMarkets
			}
			st, err := c.loadStore()
			if err != nil {
				return &cliError{err: err, help: "Check WWATCHER_HISTORY_PATH"}
			}
			return writeJSON(c.stdout, st.Summarize(top))
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "number of top markets (default TOP_MARKETS)")
	return cmd
}

func (c *cli) newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search alerts by market title or outcome text",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return &cliError{err: errEmptyQuery, help: "Usage: wwatcher search <query>"}
			}

			st, err := c.loadStore()
			if err != nil {
				return &cliError{err: err, help: "Check WWATCHER_HISTORY_PATH"}
			}
			alerts := st.Search(query, limit)

			return writeJSON(c.stdout, map[string]any{
				"query":  query,
				"count":  len(alerts),
				"alerts": alerts,
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", store.DefaultLimit, "max alerts to return")
	return cmd
}

type matchedProvider struct {
	Provider        string   `json:"provider"`
	Key             string   `json:"key"`
	Category        string   `json:"category"`
	MatchedKeywords []string `json:"matched_keywords"`
}

func (c *cli) newFetchCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "fetch <market_title...>",
		Short: "Fetch structured provider data for a market",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return &cliError{err: research.ErrEmptyMarketTitle, help: "Usage: wwatcher fetch <market_title>"}
			}

			catalog, err := c.loadCatalog()
			if err != nil {
				return err
			}
			matches := provider.NewMatcher(catalog).Match(title, category)

			if err := c.cfg.RequireKeys(config.EnvRapidAPIKey); err != nil {
				would := make([]matchedProvider, 0, len(matches))
				for _, m := range matches {
					would = append(would, matchedProvider{
						Provider:        m.Provider.Name,
						Key:             m.Provider.Key,
						Category:        m.Provider.Category,
						MatchedKeywords: m.MatchedKeywords,
					})
				}
				if werr := writeJSON(c.stdout, map[string]any{
					"error":             err.Error(),
					"help":              helpFor(err),
					"matched_providers": would,
				}); werr != nil {
					return werr
				}
				return &reportedError{err: err}
			}

			if len(matches) == 0 {
				return writeJSON(c.stdout, map[string]any{
					"market_title":        title,
					"message":             "No matching providers found for this market title",
					"available_providers": catalog.List(),
				})
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			dispatcher := fetch.NewDispatcher(c.newFetchClient(), c.cfg.FetchConcurrency, c.logger, c.tracker)
			results := dispatcher.Dispatch(ctx, fetch.Eligible(matches, category), title)

			return writeJSON(c.stdout, map[string]any{
				"market_title":      title,
				"providers_matched": research.ProviderRefs(matches),
				"results":           results,
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "override category (weather, crypto, sports, news, politics)")
	return cmd
}

func (c *cli) newPerplexityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "perplexity <query...>",
		Short: "Run a single research query",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return &cliError{err: errEmptyQuery, help: "Usage: wwatcher perplexity <query>"}
			}
			if err := c.cfg.RequireKeys(config.EnvPerplexityKey); err != nil {
				return err
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			ans := c.newResearchClient().Ask(ctx, query)
			if ans.OK() {
				c.tracker.IncResearchQuery(fetch.StatusOK)
			} else {
				c.tracker.IncResearchQuery(fetch.StatusError)
			}
			return writeJSON(c.stdout, ans)
		},
	}
}

func (c *cli) newResearchCmd() *cobra.Command {
	var (
		category string
		queries  int
	)

	cmd := &cobra.Command{
		Use:   "research <market_title...>",
		Short: "Full research: provider data plus research queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return &cliError{err: research.ErrEmptyMarketTitle, help: "Usage: wwatcher research <market_title>"}
			}
			if err := c.cfg.RequireKeys(config.EnvRapidAPIKey, config.EnvPerplexityKey); err != nil {
				return err
			}

			catalog, err := c.loadCatalog()
			if err != nil {
				return err
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			orchestrator := research.NewOrchestrator(
				provider.NewMatcher(catalog),
				fetch.NewDispatcher(c.newFetchClient(), c.cfg.FetchConcurrency, c.logger, c.tracker),
				c.newResearchClient(),
				c.cfg.ResearchPause,
				c.logger,
				c.tracker,
			)

			report, err := orchestrator.Research(ctx, research.Request{
				MarketTitle: title,
				Category:    category,
				Queries:     queries,
			})
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, report)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "override category (weather, crypto, sports, news, politics)")
	cmd.Flags().IntVarP(&queries, "queries", "q", research.DefaultQueries, "number of research queries")
	return cmd
}

func (c *cli) newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive alert browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.loadCatalog()
			if err != nil {
				return err
			}

			// Load errors are shown in the summary panel instead.
			c.silenceStderrLogs()

			app := ui.NewApp(ui.Options{
				Load:       c.loadStore,
				Matcher:    provider.NewMatcher(catalog),
				Thresholds: detector.ThresholdsFromConfig(c.cfg),
				TopMarkets: c.cfg.TopMarkets,
				Logger:     c.logger,
			})
			if err := app.Run(); err != nil {
				return fmt.Errorf("browse: %w", err)
			}
			return nil
		},
	}
}
