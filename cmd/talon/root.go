package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talonjobs/talon/internal/config"
	"github.com/talonjobs/talon/internal/sink"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "talon",
	Short: "Job posting ingestion pipeline",
	Long:  "Talon scrapes a job board, classifies each posting with an LLM, and stores the relevant ones.",
	// Default to `ingest` so that `talon` with no args runs one batch.
	RunE: runIngest,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: TALON_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > TALON_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("TALON_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildSink creates the configured store. The returned close func is a no-op
// for sinks without resources to release.
func buildSink(cfg *config.Config, logger *slog.Logger) (sink.Store, func() error, error) {
	switch cfg.Sink.Type {
	case "sqlite":
		store, err := sink.NewSQLiteStore(cfg.Sink.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "api":
		client := &http.Client{Timeout: 30 * time.Second}
		return sink.NewAPISink(cfg.Sink.APIBaseURL, client), func() error { return nil }, nil
	case "none":
		logger.Info("sink disabled, postings will not be persisted")
		return sink.NewNopSink(logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
}

// openSQLiteStore opens the configured database for read-side commands.
func openSQLiteStore(cfg *config.Config) (*sink.SQLiteStore, error) {
	if cfg.Sink.Type != "sqlite" {
		return nil, fmt.Errorf("sink.type must be sqlite for this command, got %q", cfg.Sink.Type)
	}
	return sink.NewSQLiteStore(cfg.Sink.DBPath)
}
