package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

type fakeMetricsStore struct {
	businesses map[model.BusinessStatus]int
	pairs      map[model.PairStatus]int
	costCents  float64
	err        error
}

func (f *fakeMetricsStore) CountBusinessesByStatus(context.Context) (map[model.BusinessStatus]int, error) {
	return f.businesses, f.err
}

func (f *fakeMetricsStore) CountPairsByStatus(context.Context) (map[model.PairStatus]int, error) {
	return f.pairs, f.err
}

func (f *fakeMetricsStore) SumCostCents(context.Context, time.Duration) (float64, error) {
	return f.costCents, f.err
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(&fakeMetricsStore{
		businesses: map[model.BusinessStatus]int{
			model.BusinessStatusPending: 60,
			model.BusinessStatusScored:  20,
			model.BusinessStatusMerged:  20,
		},
		pairs: map[model.PairStatus]int{
			model.PairStatusPending: 5,
			model.PairStatusMerged:  20,
			model.PairStatusReview:  3,
		},
		costCents: 12.5,
	})

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 100, snap.BusinessTotal)
	assert.Equal(t, 20, snap.BusinessMerged)
	assert.InDelta(t, 0.2, snap.DuplicateRate, 1e-9)
	assert.Equal(t, 5, snap.PairsPending)
	assert.Equal(t, 3, snap.PairsReview)
	assert.Equal(t, 12.5, snap.CostCents)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_Collect_EmptyStore(t *testing.T) {
	c := NewCollector(&fakeMetricsStore{})

	snap, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, snap.BusinessTotal)
	assert.Zero(t, snap.DuplicateRate)
	assert.Equal(t, 24, snap.LookbackHours, "lookback defaults to 24h")
}

func TestCollector_Collect_StoreError(t *testing.T) {
	c := NewCollector(&fakeMetricsStore{err: assert.AnError})

	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
}
