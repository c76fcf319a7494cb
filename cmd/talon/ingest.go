package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talonjobs/talon/internal/ai"
	"github.com/talonjobs/talon/internal/enrich"
	"github.com/talonjobs/talon/internal/pipeline"
	"github.com/talonjobs/talon/internal/scraper"
)

var (
	ingestQuery  string
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one scrape-classify-store batch",
	Long:  "Scrape the job board, classify every new posting, and store the relevant ones. Exits when the batch completes.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestQuery, "query", "q", "", "search query (overrides config)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "skip classification calls, synthesize placeholder judgements")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if ingestQuery != "" {
		cfg.Query = ingestQuery
	}
	if ingestDryRun {
		cfg.Enrich.DryRun = true
	}

	logger.Info("config loaded",
		"query", cfg.Query,
		"max_pages", cfg.Scraper.MaxPages,
		"dry_run", cfg.Enrich.DryRun,
		"sink", cfg.Sink.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	s := scraper.New(
		cfg.Scraper.BaseURL,
		cfg.Scraper.MaxPages,
		cfg.Scraper.MaxConcurrentRequests,
		scraper.NewHTTPFetcher(httpClient),
		logger,
	)

	var provider ai.Provider
	if !cfg.Enrich.DryRun {
		provider = ai.NewOpenAIProvider(
			cfg.AI.BaseURL,
			cfg.AI.APIKey,
			cfg.AI.Model,
			&http.Client{Timeout: cfg.AI.Timeout},
		)
	}
	stage := enrich.New(provider, cfg.Enrich.MaxConcurrentTasks, cfg.Retry.Policy(), cfg.Enrich.DryRun, logger)

	store, closeStore, err := buildSink(cfg, logger)
	if err != nil {
		logger.Error("failed to build sink", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	summary, err := pipeline.New(s, stage, store, logger).Run(ctx, cfg.Query)
	if err != nil {
		logger.Error("run ended early", "error", err)
	}

	logger.Info("ingest finished",
		"scraped", summary.Scraped,
		"filtered", summary.Filtered,
		"stored", summary.Stored,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return nil
}
