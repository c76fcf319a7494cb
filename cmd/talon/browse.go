package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/talonjobs/talon/internal/browse"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored jobs in the terminal",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
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

	return browse.Run(context.Background(), store)
}
