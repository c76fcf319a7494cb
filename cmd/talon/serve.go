package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/talonjobs/talon/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored jobs over HTTP",
	Long:  "Expose the stored postings as a JSON API; blocks until the listener fails or the process is killed.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := openSQLiteStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := server.New(store, logger).Run(cfg.Server.Addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	return nil
}
