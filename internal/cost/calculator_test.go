package cost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_Ollama(t *testing.T) {
	c := NewCalculator(Rates{Ollama: OllamaRate{CentsPerKTok: 0.01}})

	assert.InDelta(t, 0.01, c.Ollama(800, 200), 1e-9)
	assert.InDelta(t, 0.0, c.Ollama(0, 0), 1e-9)
}

func TestCalculator_Anthropic(t *testing.T) {
	c := NewCalculator(DefaultRates())

	// 1M input + 1M output on haiku: $0.80 + $4.00 = 480 cents.
	assert.InDelta(t, 480.0, c.Anthropic("claude-haiku-4-5-20251001", 1_000_000, 1_000_000), 1e-6)
}

func TestCalculator_AnthropicUnknownModel(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Equal(t, 0.0, c.Anthropic("unknown-model", 1000, 1000))
}

type failingLedgerStore struct {
	called int
}

func (f *failingLedgerStore) RecordCost(context.Context, Event) error {
	f.called++
	return errors.New("db down")
}

func TestLedger_SwallowsStoreErrors(t *testing.T) {
	st := &failingLedgerStore{}
	l := NewLedger(st)

	// Must not panic or propagate the failure.
	l.Record(context.Background(), Event{Service: "ollama", Operation: "dedupe_verification", CostCents: 0.01})
	assert.Equal(t, 1, st.called)
}

type capturingLedgerStore struct {
	events []Event
}

func (c *capturingLedgerStore) RecordCost(_ context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestLedger_StampsOccurredAt(t *testing.T) {
	st := &capturingLedgerStore{}
	l := NewLedger(st)

	l.Record(context.Background(), Event{Service: "ollama", Operation: "dedupe_verification"})
	assert.Len(t, st.events, 1)
	assert.False(t, st.events[0].OccurredAt.IsZero())
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.Record(context.Background(), Event{Service: "ollama"})
}
