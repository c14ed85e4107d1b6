package model

import (
	"time"
)

// PairStatus is the lifecycle state of a candidate duplicate pair.
type PairStatus string

// Candidate pair states. Pending pairs are consumed exactly once by the
// orchestrator; merged, rejected, and review are terminal.
const (
	PairStatusPending   PairStatus = "pending"
	PairStatusProcessed PairStatus = "processed"
	PairStatusMerged    PairStatus = "merged"
	PairStatusRejected  PairStatus = "rejected"
	PairStatusReview    PairStatus = "review"
)

// IsTerminal reports whether a pair in this state may still be processed.
func (s PairStatus) IsTerminal() bool {
	return s == PairStatusProcessed || s == PairStatusMerged ||
		s == PairStatusRejected || s == PairStatusReview
}

// CandidatePair is an unordered pair of business ids flagged upstream as
// plausibly duplicate. Business1ID < Business2ID always holds so the same
// pair cannot be stored twice.
type CandidatePair struct {
	ID          int64      `json:"id" db:"id"`
	Business1ID int64      `json:"business1_id" db:"business1_id"`
	Business2ID int64      `json:"business2_id" db:"business2_id"`
	Similarity  float64    `json:"similarity" db:"similarity"`
	Status      PairStatus `json:"status" db:"status"`

	VerifiedByLLM bool     `json:"verified_by_llm" db:"verified_by_llm"`
	LLMConfidence *float64 `json:"llm_confidence,omitempty" db:"llm_confidence"`
	LLMReasoning  string   `json:"llm_reasoning,omitempty" db:"llm_reasoning"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewCandidatePair builds a pending pair with the id-ordering invariant
// applied regardless of argument order.
func NewCandidatePair(business1ID, business2ID int64, similarity float64) CandidatePair {
	if business2ID < business1ID {
		business1ID, business2ID = business2ID, business1ID
	}
	return CandidatePair{
		Business1ID: business1ID,
		Business2ID: business2ID,
		Similarity:  similarity,
		Status:      PairStatusPending,
	}
}
