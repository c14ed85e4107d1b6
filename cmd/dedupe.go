package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/dedupe"
	"github.com/anthrasite/leadfactory-cli/internal/merge"
	"github.com/anthrasite/leadfactory-cli/internal/monitoring"
)

var (
	dedupeLimit        int
	dedupeThreshold    float64
	dedupeDryRun       bool
	dedupeMarkRejected bool
	dedupeFormat       string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Process pending candidate pairs through LLM verification and merge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		markRejected := dedupeMarkRejected
		if !cmd.Flags().Changed("mark-rejected") {
			markRejected = cfg.Dedupe.MarkRejected
		}

		var orch *dedupe.Orchestrator
		if dedupeDryRun {
			// A dry run never reaches the LLM, so skip backend setup.
			orch = dedupe.NewOrchestrator(st, newMatcher(dedupeThreshold), nil, nil,
				monitoring.Sink{}, dedupe.Options{Limit: dedupeLimit, DryRun: true})
		} else {
			v, err := initVerifier(ctx, st)
			if err != nil {
				return eris.Wrap(err, "init verifier")
			}
			orch = dedupe.NewOrchestrator(st, newMatcher(dedupeThreshold), v,
				merge.NewResolver(st), monitoring.Sink{},
				dedupe.Options{Limit: dedupeLimit, MarkRejected: markRejected})
		}

		stats, err := orch.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "dedupe run")
		}

		if stats.Errors > 0 {
			zap.L().Warn("dedupe run finished with per-pair errors", zap.Int("errors", stats.Errors))
		}

		return printRunStats(cmd, stats)
	},
}

func printRunStats(cmd *cobra.Command, stats *dedupe.RunStats) error {
	if dedupeFormat == "table" {
		printTable(cmd.OutOrStdout(), map[string]any{
			"processed":    stats.Processed,
			"merged":       stats.Merged,
			"rejected":     stats.Rejected,
			"review":       stats.Review,
			"skipped":      stats.Skipped,
			"would_verify": stats.WouldVerify,
			"errors":       stats.Errors,
		})
		return nil
	}
	return printStructured(cmd.OutOrStdout(), dedupeFormat, stats)
}

func init() {
	dedupeCmd.Flags().IntVar(&dedupeLimit, "limit", 0, "max pairs to process (0 = all)")
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "similarity prefilter threshold (default from config)")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "report what would be verified without calling the LLM or writing")
	dedupeCmd.Flags().BoolVar(&dedupeMarkRejected, "mark-rejected", true, "mark LLM-declined pairs rejected instead of processed")
	dedupeCmd.Flags().StringVar(&dedupeFormat, "format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(dedupeCmd)
}
