package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngm-data/causelist/internal/crawl"
)

var (
	crawlCourts     []string
	crawlKind       string
	crawlLookback   int
	crawlOffset     int
	crawlWorkers    int
	crawlFetchLimit int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Harvest daily cause lists for the selected courts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		courts := crawlCourts
		if len(courts) == 0 {
			courts = cfg.Crawl.Courts
		}
		kind := crawlKind
		if kind == "" {
			kind = cfg.Crawl.Kind
		}
		selected, err := e.selectCourts(courts, kind)
		if err != nil {
			return err
		}

		lookback := cfg.Crawl.Lookback
		if crawlLookback > 0 {
			lookback = crawlLookback
		}
		offset := cfg.Crawl.Offset
		if cmd.Flags().Changed("offset") {
			offset = crawlOffset
		}
		workers := cfg.Crawl.CourtConcurrency
		if crawlWorkers > 0 {
			workers = crawlWorkers
		}
		fetchLimit := cfg.Crawl.BenchConcurrency
		if crawlFetchLimit > 0 {
			fetchLimit = crawlFetchLimit
		}

		eng := crawl.New(crawl.Config{
			BaseURL:          cfg.Crawl.BaseURL,
			Lookback:         lookback,
			Offset:           offset,
			CourtConcurrency: workers,
			BenchConcurrency: fetchLimit,
		}, e.fetcher, e.store, zap.L())

		run, err := eng.Run(ctx, selected)
		if err != nil {
			return err
		}
		cmd.Printf("run %s: %d units done, %d blocked, %d cases\n",
			run.ID, run.UnitsDone, run.UnitsBlocked, run.CasesUpserted)
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringSliceVar(&crawlCourts, "courts", nil, "court identifiers (default: all of --kind)")
	crawlCmd.Flags().StringVar(&crawlKind, "kind", "", "court kind: high, district, special")
	crawlCmd.Flags().IntVar(&crawlLookback, "lookback", 0, "dates per court (overrides config)")
	crawlCmd.Flags().IntVar(&crawlOffset, "offset", 0, "days behind today to start from (overrides config)")
	crawlCmd.Flags().IntVar(&crawlWorkers, "concurrency", 0, "courts crawled in parallel (overrides config)")
	crawlCmd.Flags().IntVar(&crawlFetchLimit, "fetch-limit", 0, "bench fetches in flight per unit (overrides config)")
	rootCmd.AddCommand(crawlCmd)
}
