package dedupe

import (
	"context"

	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/store"
)

// CandidateSource generates pending candidate pairs from the business table.
type CandidateSource interface {
	GenerateCandidates(ctx context.Context, fuzzyThreshold float64) (*store.CandidateStats, error)
}

// DefaultFuzzyThreshold is the trigram similarity floor for the fuzzy
// name blocking pass.
const DefaultFuzzyThreshold = 0.8

// GenerateCandidates runs the blocking passes and logs what each produced.
func GenerateCandidates(ctx context.Context, src CandidateSource, fuzzyThreshold float64) (*store.CandidateStats, error) {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	stats, err := src.GenerateCandidates(ctx, fuzzyThreshold)
	if err != nil {
		return nil, err
	}
	zap.L().Info("candidate generation complete",
		zap.Int64("phone_exact", stats.PhoneExact),
		zap.Int64("name_zip_exact", stats.NameZipExact),
		zap.Int64("fuzzy_name", stats.FuzzyName),
		zap.Int64("total", stats.Total()))
	return stats, nil
}
