package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
