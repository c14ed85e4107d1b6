// Package cost tracks per-call verification spend.
package cost

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one billable API call.
type Event struct {
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	CostCents  float64   `json:"cost_cents"`
	Tier       int       `json:"tier"`
	BusinessID *int64    `json:"business_id,omitempty"`
	Tokens     int       `json:"tokens,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives cost events. Implementations must be safe to call with a
// failed or cancelled context: cost tracking never blocks the pipeline.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// NopSink discards all events, used for dry runs.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) {}

// LedgerStore is the persistence surface the ledger needs.
type LedgerStore interface {
	RecordCost(ctx context.Context, ev Event) error
}

// Ledger persists events through a store and logs each one. Write failures
// are logged and swallowed so a cost-tracking outage cannot fail a merge.
type Ledger struct {
	store LedgerStore
}

// NewLedger creates a store-backed cost sink.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// Record implements Sink.
func (l *Ledger) Record(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	zap.L().Debug("cost event",
		zap.String("service", ev.Service),
		zap.String("operation", ev.Operation),
		zap.Float64("cost_cents", ev.CostCents),
		zap.Int("tier", ev.Tier),
		zap.Int("tokens", ev.Tokens),
	)

	if err := l.store.RecordCost(ctx, ev); err != nil {
		zap.L().Warn("cost: record failed",
			zap.String("service", ev.Service),
			zap.Error(err),
		)
	}
}
