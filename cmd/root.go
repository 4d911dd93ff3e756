package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "causelist",
	Short: "Incremental harvester for Nepali court cause lists",
	Long:  "Walks court sites by Bikram Sambat date, collects daily cause lists into Postgres or SQLite, and enriches district cases from the case detail endpoint.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
