package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func mustCreateBusiness(t *testing.T, st *SQLiteStore, b model.Business) model.Business {
	t.Helper()
	require.NoError(t, st.CreateBusiness(context.Background(), &b))
	return b
}

func TestSQLite_CreateAndGetBusiness(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b := mustCreateBusiness(t, st, model.Business{
		Name:  "Joe's Plumbing",
		Phone: "(555) 123-4567",
		Zip:   "62701",
		State: "IL",
	})
	require.NotZero(t, b.ID)

	got, err := st.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Joe's Plumbing", got.Name)
	assert.Equal(t, model.BusinessStatusPending, got.Status)
	assert.Nil(t, got.MergedInto)
}

func TestSQLite_GetBusiness_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetBusiness(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ImportBusinesses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ImportBusinesses(ctx, []model.Business{
		{Name: "Acme Corp", Zip: "10001"},
		{Name: "Beta LLC", Zip: "10002"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	counts, err := st.CountBusinessesByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.BusinessStatusPending])
}

func TestSQLite_ImportBusinesses_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.ImportBusinesses(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_PairLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b1 := mustCreateBusiness(t, st, model.Business{Name: "Acme"})
	b2 := mustCreateBusiness(t, st, model.Business{Name: "Acme Inc"})

	p := model.NewCandidatePair(b2.ID, b1.ID, 0.91)
	require.NoError(t, st.CreatePair(ctx, &p))
	assert.Less(t, p.Business1ID, p.Business2ID)

	pending, err := st.ListPendingPairs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, p.ID, pending[0].ID)

	require.NoError(t, st.RecordVerification(ctx, p.ID, model.PairStatusMerged, 0.95, "Same company."))

	pending, err = st.ListPendingPairs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	counts, err := st.CountPairsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.PairStatusMerged])
}

func TestSQLite_CreatePair_RejectsDuplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	b1 := mustCreateBusiness(t, st, model.Business{Name: "Acme"})
	b2 := mustCreateBusiness(t, st, model.Business{Name: "Acme Inc"})

	p1 := model.NewCandidatePair(b1.ID, b2.ID, 0.9)
	require.NoError(t, st.CreatePair(ctx, &p1))

	// Same pair with ids reversed hits the unique constraint.
	p2 := model.NewCandidatePair(b2.ID, b1.ID, 0.8)
	err := st.CreatePair(ctx, &p2)
	require.Error(t, err)
}

func TestSQLite_UpdatePairStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdatePairStatus(context.Background(), 404, model.PairStatusRejected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pair not found")
}

func TestSQLite_GenerateCandidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Same phone, formatted differently.
	a := mustCreateBusiness(t, st, model.Business{Name: "Joe's Plumbing", Phone: "(555) 123-4567", State: "IL", Zip: "62701"})
	b := mustCreateBusiness(t, st, model.Business{Name: "Joseph Plumbing LLC", Phone: "555-123-4567", State: "IL", Zip: "62702"})
	// Same normalized name + zip, no phone.
	c := mustCreateBusiness(t, st, model.Business{Name: "Acme Widgets Inc", State: "NY", Zip: "10001"})
	d := mustCreateBusiness(t, st, model.Business{Name: "ACME WIDGETS, LLC", State: "NY", Zip: "10001"})
	// Unrelated.
	mustCreateBusiness(t, st, model.Business{Name: "Zebra Consulting", State: "CA", Zip: "90210"})

	stats, err := st.GenerateCandidates(ctx, 0.8)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PhoneExact)
	assert.Equal(t, int64(1), stats.NameZipExact)

	pending, err := st.ListPendingPairs(ctx, 100)
	require.NoError(t, err)

	found := map[[2]int64]bool{}
	for _, p := range pending {
		found[[2]int64{p.Business1ID, p.Business2ID}] = true
	}
	assert.True(t, found[[2]int64{a.ID, b.ID}], "phone-match pair missing")
	assert.True(t, found[[2]int64{c.ID, d.ID}], "name+zip pair missing")
}

func TestSQLite_GenerateCandidates_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	mustCreateBusiness(t, st, model.Business{Name: "Acme", Phone: "5551234567", State: "NY", Zip: "10001"})
	mustCreateBusiness(t, st, model.Business{Name: "Acme", Phone: "5551234567", State: "NY", Zip: "10001"})

	first, err := st.GenerateCandidates(ctx, 0.8)
	require.NoError(t, err)
	assert.Positive(t, first.Total())

	second, err := st.GenerateCandidates(ctx, 0.8)
	require.NoError(t, err)
	assert.Zero(t, second.Total(), "rerun must not duplicate pairs")
}

func TestSQLite_GenerateCandidates_SkipsMerged(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := mustCreateBusiness(t, st, model.Business{Name: "Acme", Phone: "5551234567"})
	b := mustCreateBusiness(t, st, model.Business{Name: "Acme", Phone: "5551234567"})
	require.NoError(t, st.MergeBusinesses(ctx, a.ID, b.ID))

	stats, err := st.GenerateCandidates(ctx, 0.8)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())
}

func TestSQLite_MergeBusinesses_RepointsChildren(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	primary := mustCreateBusiness(t, st, model.Business{Name: "Acme Corp"})
	secondary := mustCreateBusiness(t, st, model.Business{Name: "Acme Corporation"})

	_, err := st.db.ExecContext(ctx, `INSERT INTO features (business_id) VALUES (?), (?)`, secondary.ID, secondary.ID)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `INSERT INTO mockups (business_id) VALUES (?)`, secondary.ID)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `INSERT INTO emails (business_id) VALUES (?)`, primary.ID)
	require.NoError(t, err)

	require.NoError(t, st.MergeBusinesses(ctx, primary.ID, secondary.ID))

	got, err := st.GetBusiness(ctx, secondary.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.BusinessStatusMerged, got.Status)
	require.NotNil(t, got.MergedInto)
	assert.Equal(t, primary.ID, *got.MergedInto)

	counts, err := st.ChildCounts(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Features)
	assert.Equal(t, 1, counts.Mockups)
	assert.Equal(t, 1, counts.Emails)

	orphaned, err := st.ChildCounts(ctx, secondary.ID)
	require.NoError(t, err)
	assert.Zero(t, orphaned.Total())
}

func TestSQLite_MergeBusinesses_RefusesChain(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := mustCreateBusiness(t, st, model.Business{Name: "A"})
	b := mustCreateBusiness(t, st, model.Business{Name: "B"})
	c := mustCreateBusiness(t, st, model.Business{Name: "C"})

	require.NoError(t, st.MergeBusinesses(ctx, a.ID, b.ID))

	// Already-merged record cannot be merged again.
	err := st.MergeBusinesses(ctx, c.ID, b.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already merged")

	// Merged record cannot serve as a merge target.
	err = st.MergeBusinesses(ctx, b.ID, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already merged")
}

func TestSQLite_CostLedger(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	bid := int64(1)
	require.NoError(t, st.RecordCost(ctx, cost.Event{
		Service:    "ollama",
		Operation:  "dedupe_verification",
		CostCents:  0.012,
		Tier:       1,
		BusinessID: &bid,
		Tokens:     520,
		OccurredAt: time.Now().UTC(),
	}))
	require.NoError(t, st.RecordCost(ctx, cost.Event{
		Service:   "anthropic",
		Operation: "dedupe_verification",
		CostCents: 0.8,
		Tier:      2,
	}))

	total, err := st.SumCostCents(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 0.812, total, 1e-9)

	total, err = st.SumCostCents(ctx, time.Nanosecond)
	require.NoError(t, err)
	assert.Zero(t, total)
}
