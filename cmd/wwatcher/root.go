package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyinsider/wwatcher/internal/config"
	"github.com/polyinsider/wwatcher/internal/fetch"
	"github.com/polyinsider/wwatcher/internal/metrics"
	"github.com/polyinsider/wwatcher/internal/provider"
	"github.com/polyinsider/wwatcher/internal/research"
	"github.com/polyinsider/wwatcher/internal/store"
)

// cli carries what every command needs. It is filled in by the root
// command's pre-run hook, after flags are parsed.
type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
	tracker *metrics.Tracker

	stdout  io.Writer
	stderr  io.Writer
	timeout time.Duration

	// command is the name of the command that ran, for metrics.
	command string
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr, tracker: metrics.NewTracker()}

	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	c.finish(err)

	if err != nil {
		var silent *reportedError
		if !errors.As(err, &silent) {
			writeError(stderr, err)
		}
		return 1
	}
	return 0
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wwatcher",
		Short: "Whale alert research CLI",
		Long: "wwatcher inspects the whale alert history written by the watcher and\n" +
			"enriches a market with structured provider data and research queries.\n" +
			"All output is JSON on stdout.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 0, "abort the command after this long (0 = no limit)")

	root.AddCommand(
		c.newStatusCmd(),
		c.newAlertsCmd(),
		c.newSummaryCmd(),
		c.newSearchCmd(),
		c.newFetchCmd(),
		c.newPerplexityCmd(),
		c.newResearchCmd(),
		c.newBrowseCmd(),
	)

	return root
}

// setup loads configuration and the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	c.command = cmd.Name()

	cfg, err := config.Load()
	if err != nil {
		return &cliError{err: err, help: "Check the environment variables and .env file"}
	}
	c.cfg = cfg

	c.logger, c.logFile = setupLogger(cfg.LogLevel, cfg.LogFile, c.stderr)
	slog.SetDefault(c.logger)

	c.logger.Debug("config_loaded",
		"history_path", cfg.HistoryPath,
		"providers_config", cfg.ProvidersConfigPath,
		"rapidapi_key", cfg.MaskedRapidAPIKey(),
		"perplexity_key", cfg.MaskedPerplexityKey(),
		"perplexity_model", cfg.PerplexityModel,
		"research_pause", cfg.ResearchPause,
		"http_timeout", cfg.HTTPTimeout,
		"rapidapi_rps", cfg.RapidAPIRPS,
		"fetch_concurrency", cfg.FetchConcurrency,
	)

	return nil
}

// finish records the command outcome and flushes metrics and logs.
func (c *cli) finish(err error) {
	if c.command != "" {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.tracker.IncCommand(c.command, result)
	}

	if c.cfg != nil && c.cfg.MetricsTextfile != "" {
		if werr := c.tracker.WriteTextfile(c.cfg.MetricsTextfile); werr != nil && c.logger != nil {
			c.logger.Warn("metrics_write_failed", "path", c.cfg.MetricsTextfile, "error", werr)
		}
	}

	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

// silenceStderrLogs drops log output while a full-screen UI owns the
// terminal. A LOG_FILE sink is left alone.
func (c *cli) silenceStderrLogs() {
	if c.cfg.LogFile != "" {
		return
	}
	c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	slog.SetDefault(c.logger)
}

// context applies --timeout to the command context.
func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// loadStore loads the alert history. A load failure is logged and returned
// next to the (empty) store; callers decide whether it matters.
func (c *cli) loadStore() (*store.Store, error) {
	st := store.New(c.logger)
	err := st.Load(c.cfg.HistoryPath)
	if err != nil {
		c.logger.Warn("history_load_failed", "path", c.cfg.HistoryPath, "error", err)
	}

	c.tracker.SetAlertsLoaded(st.Count())
	for reason, n := range st.SkippedByReason() {
		c.tracker.SetSkipped(string(reason), n)
	}
	return st, err
}

// loadCatalog loads the provider catalog. A malformed catalog is a
// configuration error.
func (c *cli) loadCatalog() (*provider.Catalog, error) {
	catalog, err := provider.LoadCatalog(c.cfg.ProvidersConfigPath)
	if err != nil {
		return nil, &cliError{err: err, help: fmt.Sprintf("Fix the provider catalog at %s (PROVIDERS_CONFIG)", c.cfg.ProvidersConfigPath)}
	}
	return catalog, nil
}

func (c *cli) newFetchClient() *fetch.Client {
	return fetch.NewClient(c.cfg.RapidAPIKey,
		fetch.WithTimeout(c.cfg.HTTPTimeout),
		fetch.WithRateLimit(c.cfg.RapidAPIRPS, c.cfg.RapidAPIBurst),
		fetch.WithLogger(c.logger),
	)
}

func (c *cli) newResearchClient() *research.Client {
	return research.NewClient(c.cfg.PerplexityAPIKey,
		research.WithURL(c.cfg.PerplexityURL),
		research.WithModel(c.cfg.PerplexityModel),
		research.WithTimeout(c.cfg.HTTPTimeout),
		research.WithLogger(c.logger),
	)
}
