package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/resilience"
)

type stubVerifier struct {
	verdict Verdict
	calls   int
}

func (s *stubVerifier) VerifyDuplicates(context.Context, *model.Business, *model.Business) Verdict {
	s.calls++
	return s.verdict
}

func TestCircuitVerifier_PassesVerdictsThrough(t *testing.T) {
	inner := &stubVerifier{verdict: Verdict{IsDuplicate: true, Confidence: 0.9, Reasoning: "Same."}}
	cv := NewCircuitVerifier(inner, resilience.DefaultCircuitBreakerConfig())

	v := cv.VerifyDuplicates(context.Background(), &model.Business{ID: 1}, &model.Business{ID: 2})
	assert.True(t, v.IsDuplicate)
	assert.Equal(t, 1, inner.calls)
}

func TestCircuitVerifier_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubVerifier{verdict: Verdict{Reasoning: "Error: connection refused"}}
	cv := NewCircuitVerifier(inner, resilience.CircuitBreakerConfig{FailureThreshold: 3})

	b1, b2 := &model.Business{ID: 1}, &model.Business{ID: 2}
	for i := 0; i < 3; i++ {
		v := cv.VerifyDuplicates(context.Background(), b1, b2)
		assert.True(t, v.Failed())
	}
	assert.Equal(t, resilience.CircuitOpen, cv.State())

	// Open circuit short-circuits without touching the backend.
	v := cv.VerifyDuplicates(context.Background(), b1, b2)
	assert.True(t, v.Failed())
	assert.False(t, v.IsDuplicate)
	assert.Equal(t, 3, inner.calls)
}
