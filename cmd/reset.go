package main

import (
	"github.com/spf13/cobra"
)

var resetCourt string

var resetCmd = &cobra.Command{
	Use:   "reset-enrichment",
	Short: "Move failed cases back to pending so enrich retries them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.store.ResetEnrichment(ctx, resetCourt)
		if err != nil {
			return err
		}
		cmd.Printf("%d cases reset to pending\n", n)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetCourt, "court", "", "limit to one court (default: all)")
	rootCmd.AddCommand(resetCmd)
}
