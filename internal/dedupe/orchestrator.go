// Package dedupe drives candidate pairs through prefilter, LLM
// verification, and merge.
package dedupe

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/similarity"
	"github.com/anthrasite/leadfactory-cli/internal/verify"
)

// ConfidenceFloor is the minimum LLM confidence required to merge a
// confirmed pair. Confirmed pairs below it go to manual review instead.
const ConfidenceFloor = 0.7

// Store is the persistence surface the orchestrator needs.
type Store interface {
	ListPendingPairs(ctx context.Context, limit int) ([]model.CandidatePair, error)
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	RecordVerification(ctx context.Context, pairID int64, status model.PairStatus, confidence float64, reasoning string) error
}

// Merger executes a confirmed merge, returning the surviving record.
type Merger interface {
	Execute(ctx context.Context, id1, id2 int64) (*model.Business, error)
}

// RunStats counts per-pair outcomes of one orchestrator run.
type RunStats struct {
	Processed   int `json:"processed"`
	Merged      int `json:"merged"`
	Rejected    int `json:"rejected"`
	Review      int `json:"review"`
	Skipped     int `json:"skipped"`
	WouldVerify int `json:"would_verify,omitempty"`
	Errors      int `json:"errors"`
}

// MetricsSink receives the stats of a completed run.
type MetricsSink interface {
	ObserveRun(ctx context.Context, stats RunStats)
}

// Options tune a dedupe run.
type Options struct {
	// Limit caps how many pending pairs are processed; <= 0 means all.
	Limit int
	// DryRun stops each pair after the prefilter and writes nothing.
	DryRun bool
	// MarkRejected marks LLM-declined pairs rejected instead of processed.
	MarkRejected bool
}

// Orchestrator runs the dedupe pipeline over pending candidate pairs.
type Orchestrator struct {
	store    Store
	matcher  *similarity.Matcher
	verifier verify.Verifier
	merger   Merger
	metrics  MetricsSink
	opts     Options
}

func NewOrchestrator(s Store, m *similarity.Matcher, v verify.Verifier, mg Merger, metrics MetricsSink, opts Options) *Orchestrator {
	return &Orchestrator{store: s, matcher: m, verifier: v, merger: mg, metrics: metrics, opts: opts}
}

// Run processes pending pairs one at a time. A failure on one pair is
// logged and counted but never aborts the run.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	pairs, err := o.store.ListPendingPairs(ctx, o.opts.Limit)
	if err != nil {
		return nil, err
	}
	log.Info("dedupe run started",
		zap.Int("pairs", len(pairs)),
		zap.Bool("dry_run", o.opts.DryRun))

	stats := &RunStats{}
	for i := range pairs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		o.processPair(ctx, &pairs[i], stats)
	}

	if o.metrics != nil {
		o.metrics.ObserveRun(ctx, *stats)
	}
	return stats, nil
}

func (o *Orchestrator) processPair(ctx context.Context, pair *model.CandidatePair, stats *RunStats) {
	log := zap.L().With(
		zap.Int64("pair_id", pair.ID),
		zap.Int64("business1_id", pair.Business1ID),
		zap.Int64("business2_id", pair.Business2ID))

	if pair.Status.IsTerminal() {
		stats.Skipped++
		return
	}
	if pair.Business1ID == pair.Business2ID {
		log.Warn("self-pair in candidate queue, skipping")
		stats.Skipped++
		return
	}

	b1, err := o.store.GetBusiness(ctx, pair.Business1ID)
	if err != nil {
		log.Error("load business failed", zap.Error(err))
		stats.Errors++
		return
	}
	b2, err := o.store.GetBusiness(ctx, pair.Business2ID)
	if err != nil {
		log.Error("load business failed", zap.Error(err))
		stats.Errors++
		return
	}
	if b1 == nil || b2 == nil {
		log.Warn("candidate pair references missing business, skipping")
		stats.Skipped++
		return
	}
	if b1.IsMerged() || b2.IsMerged() {
		log.Warn("candidate pair references merged business, skipping")
		stats.Skipped++
		return
	}

	if !o.matcher.PotentialDuplicates(b1, b2) {
		stats.Skipped++
		return
	}

	if o.opts.DryRun {
		stats.WouldVerify++
		return
	}

	verdict := o.verifier.VerifyDuplicates(ctx, b1, b2)
	stats.Processed++

	// A failed verifier call is not a real decision. Leave the pair
	// pending so the next run retries it.
	if verdict.Failed() {
		log.Warn("verification failed, leaving pair pending", zap.String("reason", verdict.Reasoning))
		stats.Errors++
		return
	}

	switch {
	case verdict.IsDuplicate && verdict.Confidence >= ConfidenceFloor:
		if _, err := o.merger.Execute(ctx, b1.ID, b2.ID); err != nil {
			log.Error("merge failed", zap.Error(err))
			stats.Errors++
			return
		}
		if err := o.store.RecordVerification(ctx, pair.ID, model.PairStatusMerged, verdict.Confidence, verdict.Reasoning); err != nil {
			log.Error("record verification failed", zap.Error(err))
			stats.Errors++
			return
		}
		stats.Merged++

	case needsReview(b1, b2, verdict):
		if err := o.store.RecordVerification(ctx, pair.ID, model.PairStatusReview, verdict.Confidence, verdict.Reasoning); err != nil {
			log.Error("record verification failed", zap.Error(err))
			stats.Errors++
			return
		}
		stats.Review++

	default:
		status := model.PairStatusProcessed
		if o.opts.MarkRejected {
			status = model.PairStatusRejected
		}
		if err := o.store.RecordVerification(ctx, pair.ID, status, verdict.Confidence, verdict.Reasoning); err != nil {
			log.Error("record verification failed", zap.Error(err))
			stats.Errors++
			return
		}
		if status == model.PairStatusRejected {
			stats.Rejected++
		}
	}
}

// needsReview flags verdicts a human should look at: the LLM confirmed
// but with low confidence, or it declined a pair whose names normalize
// identically while the addresses differ, which is the chain-location
// pattern the model gets wrong most often.
func needsReview(b1, b2 *model.Business, v verify.Verdict) bool {
	if v.IsDuplicate {
		return v.Confidence < ConfidenceFloor
	}
	sameName := similarity.NormalizeName(b1.Name) != "" &&
		similarity.NormalizeName(b1.Name) == similarity.NormalizeName(b2.Name)
	diffAddress := similarity.Normalize(b1.Address) != similarity.Normalize(b2.Address)
	return sameName && diffAddress
}
