package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/anthrasite/leadfactory-cli/internal/dedupe"
)

var candidatesFuzzyThreshold float64

var dedupeCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Generate candidate duplicate pairs from the business table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		threshold := candidatesFuzzyThreshold
		if threshold <= 0 {
			threshold = cfg.Dedupe.FuzzyThreshold
		}

		stats, err := dedupe.GenerateCandidates(ctx, st, threshold)
		if err != nil {
			return eris.Wrap(err, "generate candidates")
		}

		printTable(cmd.OutOrStdout(), map[string]any{
			"phone_exact":    stats.PhoneExact,
			"name_zip_exact": stats.NameZipExact,
			"fuzzy_name":     stats.FuzzyName,
			"total":          stats.Total(),
		})
		return nil
	},
}

func init() {
	dedupeCandidatesCmd.Flags().Float64Var(&candidatesFuzzyThreshold, "fuzzy-threshold", 0, "trigram similarity floor for the fuzzy name pass (default from config)")
	dedupeCmd.AddCommand(dedupeCandidatesCmd)
}
