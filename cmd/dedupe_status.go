package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/anthrasite/leadfactory-cli/internal/monitoring"
)

var statusFormat string

var dedupeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline counts, duplicate rate, and API spend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		if statusFormat == "table" {
			printTable(cmd.OutOrStdout(), map[string]any{
				"businesses":      snap.BusinessTotal,
				"merged":          snap.BusinessMerged,
				"duplicate_rate":  snap.DuplicateRate,
				"pairs_pending":   snap.PairsPending,
				"pairs_merged":    snap.PairsMerged,
				"pairs_rejected":  snap.PairsRejected,
				"pairs_review":    snap.PairsReview,
				"pairs_processed": snap.PairsProcessed,
				"cost_cents":      snap.CostCents,
			})
			return nil
		}
		return printStructured(cmd.OutOrStdout(), statusFormat, snap)
	},
}

func init() {
	dedupeStatusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format: table, json, or yaml")
	dedupeCmd.AddCommand(dedupeStatusCmd)
}
