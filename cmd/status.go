package main

import (
	"github.com/spf13/cobra"
)

var (
	statusCourt string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and recent checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.store.Stats(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("cases: %d (pending %d, enriched %d, failed %d)\n",
			stats.Cases, stats.Pending, stats.Enriched, stats.Failed)
		cmd.Printf("hearings: %d  entities: %d  units done: %d\n",
			stats.Hearings, stats.Entities, stats.UnitsDone)
		if stats.LastScrapedAt != nil {
			cmd.Printf("last scraped: %s\n", stats.LastScrapedAt.Format("2006-01-02 15:04:05 MST"))
		}

		if statusCourt != "" {
			entries, err := e.store.Checkpoints(ctx, statusCourt, statusLimit)
			if err != nil {
				return err
			}
			cmd.Printf("\nrecent dates for %s:\n", statusCourt)
			for _, entry := range entries {
				if entry.Summary.NoData {
					cmd.Printf("  %s  no causelist\n", entry.DateBS)
					continue
				}
				cmd.Printf("  %s  %d benches, %d cases\n",
					entry.DateBS, entry.Summary.Benches, entry.Summary.Cases)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusCourt, "court", "", "also list recent checkpoints for this court")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 15, "checkpoints to list")
	rootCmd.AddCommand(statusCmd)
}
