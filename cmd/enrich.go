package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/enrich"
	"github.com/ngm-data/causelist/internal/sources"
)

var (
	enrichCourts  []string
	enrichLimit   int
	enrichWorkers int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill pending district cases from the case detail endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		courts := enrichCourts
		if len(courts) == 0 {
			courts = cfg.Enrich.Courts
		}
		selected, err := e.selectCourts(courts, string(sources.KindDistrict))
		if err != nil {
			return err
		}

		limit := cfg.Enrich.Limit
		if enrichLimit > 0 {
			limit = enrichLimit
		}
		workers := cfg.Enrich.CourtConcurrency
		if enrichWorkers > 0 {
			workers = enrichWorkers
		}

		eng := enrich.New(enrich.Config{
			BaseURL:          cfg.Enrich.BaseURL,
			Limit:            limit,
			CourtConcurrency: workers,
		}, e.fetcher, e.store, zap.L())

		run, err := eng.Run(ctx, selected)
		if err != nil {
			return err
		}
		cmd.Printf("run %s: %d enriched, %d failed\n", run.ID, run.UnitsDone, run.UnitsBlocked)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichCourts, "courts", nil, "district court identifiers (default: all districts)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "cases per court (overrides config)")
	enrichCmd.Flags().IntVar(&enrichWorkers, "concurrency", 0, "courts enriched in parallel (overrides config)")
	rootCmd.AddCommand(enrichCmd)
}
