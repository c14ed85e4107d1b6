// Package monitoring collects pipeline health metrics and raises webhook
// alerts when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// MetricsSnapshot holds a point-in-time view of dedupe pipeline health.
type MetricsSnapshot struct {
	// Business counts by status.
	BusinessTotal  int `json:"business_total"`
	BusinessMerged int `json:"business_merged"`

	// Candidate pair counts by status.
	PairsPending   int `json:"pairs_pending"`
	PairsProcessed int `json:"pairs_processed"`
	PairsMerged    int `json:"pairs_merged"`
	PairsRejected  int `json:"pairs_rejected"`
	PairsReview    int `json:"pairs_review"`

	// DuplicateRate is the share of known businesses retired by merges.
	DuplicateRate float64 `json:"duplicate_rate"`

	// API spend within the lookback window.
	CostCents float64 `json:"cost_cents"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// MetricsStore abstracts the store methods the collector queries.
type MetricsStore interface {
	CountBusinessesByStatus(ctx context.Context) (map[model.BusinessStatus]int, error)
	CountPairsByStatus(ctx context.Context) (map[model.PairStatus]int, error)
	SumCostCents(ctx context.Context, lookback time.Duration) (float64, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	store MetricsStore
}

// NewCollector creates a metrics collector.
func NewCollector(st MetricsStore) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline metrics. The three store queries
// run concurrently.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	var (
		businesses map[model.BusinessStatus]int
		pairs      map[model.PairStatus]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		businesses, err = c.store.CountBusinessesByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pairs, err = c.store.CountPairsByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.CostCents, err = c.store.SumCostCents(gctx, time.Duration(lookbackHours)*time.Hour)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, n := range businesses {
		snap.BusinessTotal += n
	}
	snap.BusinessMerged = businesses[model.BusinessStatusMerged]
	if snap.BusinessTotal > 0 {
		snap.DuplicateRate = float64(snap.BusinessMerged) / float64(snap.BusinessTotal)
	}

	snap.PairsPending = pairs[model.PairStatusPending]
	snap.PairsProcessed = pairs[model.PairStatusProcessed]
	snap.PairsMerged = pairs[model.PairStatusMerged]
	snap.PairsRejected = pairs[model.PairStatusRejected]
	snap.PairsReview = pairs[model.PairStatusReview]

	return snap, nil
}
