package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/similarity"
	"github.com/anthrasite/leadfactory-cli/internal/verify"
)

type verification struct {
	pairID     int64
	status     model.PairStatus
	confidence float64
	reasoning  string
}

type fakeStore struct {
	pairs         []model.CandidatePair
	businesses    map[int64]*model.Business
	verifications []verification
	getErr        error
}

func (f *fakeStore) ListPendingPairs(_ context.Context, limit int) ([]model.CandidatePair, error) {
	if limit > 0 && limit < len(f.pairs) {
		return f.pairs[:limit], nil
	}
	return f.pairs, nil
}

func (f *fakeStore) GetBusiness(_ context.Context, id int64) (*model.Business, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.businesses[id], nil
}

func (f *fakeStore) RecordVerification(_ context.Context, pairID int64, status model.PairStatus, confidence float64, reasoning string) error {
	f.verifications = append(f.verifications, verification{pairID, status, confidence, reasoning})
	return nil
}

type fakeVerifier struct {
	verdict verify.Verdict
	calls   int
}

func (f *fakeVerifier) VerifyDuplicates(_ context.Context, _, _ *model.Business) verify.Verdict {
	f.calls++
	return f.verdict
}

type fakeMerger struct {
	merged [][2]int64
	err    error
}

func (f *fakeMerger) Execute(_ context.Context, id1, id2 int64) (*model.Business, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.merged = append(f.merged, [2]int64{id1, id2})
	return &model.Business{ID: id1}, nil
}

func duplicateFixture() map[int64]*model.Business {
	// Name 0.76, phone exact, address exact: combined =~ 0.88, above the
	// 0.85 prefilter threshold.
	return map[int64]*model.Business{
		1: {ID: 1, Name: "Joe's Plumbing", Address: "1 Main St", Phone: "(555) 123-4567"},
		2: {ID: 2, Name: "Joes Plumbing LLC", Address: "1 Main St", Phone: "555-123-4567"},
	}
}

func newTestOrchestrator(fs *fakeStore, fv *fakeVerifier, fm *fakeMerger, opts Options) *Orchestrator {
	return NewOrchestrator(fs, similarity.NewMatcher(), fv, fm, nil, opts)
}

func TestOrchestrator_ConfirmedPairMerges(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: true, Confidence: 0.95, Reasoning: "Same phone and address."}}
	fm := &fakeMerger{}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Merged)
	assert.Zero(t, stats.Errors)
	require.Len(t, fm.merged, 1)
	require.Len(t, fs.verifications, 1)
	assert.Equal(t, model.PairStatusMerged, fs.verifications[0].status)
	assert.Equal(t, 0.95, fs.verifications[0].confidence)
}

func TestOrchestrator_DeclinedPairRejected(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: false, Confidence: 0.9, Reasoning: "Different owners."}}
	fm := &fakeMerger{}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Rejected)
	assert.Zero(t, stats.Merged)
	assert.Empty(t, fm.merged)
	require.Len(t, fs.verifications, 1)
	assert.Equal(t, model.PairStatusRejected, fs.verifications[0].status)
}

func TestOrchestrator_DeclinedPairProcessedWithoutMarkRejected(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: false, Confidence: 0.9, Reasoning: "Different owners."}}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{MarkRejected: false}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Rejected)
	require.Len(t, fs.verifications, 1)
	assert.Equal(t, model.PairStatusProcessed, fs.verifications[0].status)
}

func TestOrchestrator_SameNameDifferentAddressGoesToReview(t *testing.T) {
	fs := &fakeStore{
		pairs: []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: map[int64]*model.Business{
			1: {ID: 1, Name: "Subway", Address: "1 Main St", Phone: "5551234567"},
			2: {ID: 2, Name: "Subway", Address: "1 Main St Suite 200", Phone: "5551234567"},
		},
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: false, Confidence: 0.6, Reasoning: "Different locations of a chain."}}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Review)
	assert.Zero(t, stats.Rejected)
	require.Len(t, fs.verifications, 1)
	assert.Equal(t, model.PairStatusReview, fs.verifications[0].status)
}

func TestOrchestrator_LowConfidenceConfirmGoesToReview(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: true, Confidence: 0.5, Reasoning: "Possibly the same."}}
	fm := &fakeMerger{}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Review)
	assert.Empty(t, fm.merged, "low-confidence confirm must not merge")
}

func TestOrchestrator_PrefilterSkipSavesLLMCall(t *testing.T) {
	fs := &fakeStore{
		pairs: []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: map[int64]*model.Business{
			1: {ID: 1, Name: "Joe's Plumbing", Address: "1 Main St", Phone: "5551234567"},
			2: {ID: 2, Name: "Zebra Consulting", Address: "99 Elm Ave", Phone: "5559999999"},
		},
	}
	fv := &fakeVerifier{}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, fv.calls, "prefiltered pair must not reach the LLM")
	assert.Empty(t, fs.verifications, "prefiltered pair keeps its pending status")
}

func TestOrchestrator_FailedVerificationLeavesPairPending(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: false, Confidence: 0.0, Reasoning: "Error: connection refused"}}
	fm := &fakeMerger{}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Empty(t, fm.merged)
	assert.Empty(t, fs.verifications, "failed call must not change pair state")
}

func TestOrchestrator_MissingBusinessSkipped(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 99, Status: model.PairStatusPending}},
		businesses: map[int64]*model.Business{1: {ID: 1, Name: "Acme"}},
	}
	fv := &fakeVerifier{}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, fv.calls)
}

func TestOrchestrator_MergedBusinessSkipped(t *testing.T) {
	into := int64(5)
	fs := &fakeStore{
		pairs: []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: map[int64]*model.Business{
			1: {ID: 1, Name: "Acme"},
			2: {ID: 2, Name: "Acme", Status: model.BusinessStatusMerged, MergedInto: &into},
		},
	}
	fv := &fakeVerifier{}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, fv.calls)
}

func TestOrchestrator_TerminalPairSkipped(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusMerged}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, fv.calls)
}

func TestOrchestrator_DryRunVerifiesNothing(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: true, Confidence: 0.99}}
	fm := &fakeMerger{}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.WouldVerify)
	assert.Zero(t, fv.calls, "dry run must not spend LLM tokens")
	assert.Empty(t, fm.merged)
	assert.Empty(t, fs.verifications)
}

func TestOrchestrator_MergeErrorIsolatedPerPair(t *testing.T) {
	fs := &fakeStore{
		pairs: []model.CandidatePair{
			{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending},
			{ID: 11, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending},
		},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: true, Confidence: 0.95, Reasoning: "Same."}}
	fm := &fakeMerger{err: assert.AnError}

	stats, err := newTestOrchestrator(fs, fv, fm, Options{}).Run(context.Background())
	require.NoError(t, err, "pair failures never abort the run")

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 2, fv.calls, "second pair still processed after first failed")
}

func TestOrchestrator_LimitCapsPairs(t *testing.T) {
	fs := &fakeStore{
		pairs: []model.CandidatePair{
			{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending},
			{ID: 11, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending},
			{ID: 12, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending},
		},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: false, Confidence: 0.9, Reasoning: "No."}}

	stats, err := newTestOrchestrator(fs, fv, &fakeMerger{}, Options{Limit: 2, MarkRejected: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
}

type captureSink struct{ got *RunStats }

func (c *captureSink) ObserveRun(_ context.Context, stats RunStats) { c.got = &stats }

func TestOrchestrator_ReportsStatsToSink(t *testing.T) {
	fs := &fakeStore{
		pairs:      []model.CandidatePair{{ID: 10, Business1ID: 1, Business2ID: 2, Status: model.PairStatusPending}},
		businesses: duplicateFixture(),
	}
	fv := &fakeVerifier{verdict: verify.Verdict{IsDuplicate: true, Confidence: 0.9, Reasoning: "Same."}}
	sink := &captureSink{}

	o := NewOrchestrator(fs, similarity.NewMatcher(), fv, &fakeMerger{}, sink, Options{})
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, sink.got)
	assert.Equal(t, 1, sink.got.Merged)
}
