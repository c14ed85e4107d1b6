package verify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/resilience"
)

// CircuitVerifier wraps a Verifier with a circuit breaker so a dead LLM
// backend fails runs fast instead of burning a full timeout per pair. An
// open circuit yields the usual fail-closed verdict immediately.
type CircuitVerifier struct {
	inner   Verifier
	breaker *resilience.CircuitBreaker
}

func NewCircuitVerifier(inner Verifier, cfg resilience.CircuitBreakerConfig) *CircuitVerifier {
	return &CircuitVerifier{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(cfg),
	}
}

func (c *CircuitVerifier) VerifyDuplicates(ctx context.Context, b1, b2 *model.Business) Verdict {
	var verdict Verdict
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		verdict = c.inner.VerifyDuplicates(ctx, b1, b2)
		if verdict.Failed() {
			return eris.New(verdict.Reasoning)
		}
		return nil
	})
	if eris.Is(err, resilience.ErrCircuitOpen) {
		return failClosed(err)
	}
	return verdict
}

// State exposes the breaker state for status reporting.
func (c *CircuitVerifier) State() resilience.CircuitState {
	return c.breaker.State()
}
