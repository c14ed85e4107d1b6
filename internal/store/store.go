// Package store persists businesses, candidate duplicate pairs, and the
// cost ledger behind a backend-neutral interface.
package store

import (
	"context"
	"time"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// ChildCounts reports how many enrichment rows reference a business.
type ChildCounts struct {
	Features int `json:"features"`
	Mockups  int `json:"mockups"`
	Emails   int `json:"emails"`
}

// Total returns the number of child rows across all tables.
func (c ChildCounts) Total() int {
	return c.Features + c.Mockups + c.Emails
}

// CandidateStats reports how many pending pairs each blocking pass produced.
type CandidateStats struct {
	PhoneExact   int64 `json:"phone_exact"`
	NameZipExact int64 `json:"name_zip_exact"`
	FuzzyName    int64 `json:"fuzzy_name"`
}

// Total returns the number of pairs created across all passes.
func (s CandidateStats) Total() int64 {
	return s.PhoneExact + s.NameZipExact + s.FuzzyName
}

// Store defines the persistence interface for the dedupe pipeline.
type Store interface {
	// Businesses
	CreateBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	ImportBusinesses(ctx context.Context, businesses []model.Business) (int64, error)
	CountBusinessesByStatus(ctx context.Context) (map[model.BusinessStatus]int, error)

	// Candidate pairs
	CreatePair(ctx context.Context, p *model.CandidatePair) error
	ListPendingPairs(ctx context.Context, limit int) ([]model.CandidatePair, error)
	UpdatePairStatus(ctx context.Context, pairID int64, status model.PairStatus) error
	RecordVerification(ctx context.Context, pairID int64, status model.PairStatus, confidence float64, reasoning string) error
	CountPairsByStatus(ctx context.Context) (map[model.PairStatus]int, error)
	GenerateCandidates(ctx context.Context, fuzzyThreshold float64) (*CandidateStats, error)

	// Merge
	ChildCounts(ctx context.Context, businessID int64) (*ChildCounts, error)
	MergeBusinesses(ctx context.Context, primaryID, secondaryID int64) error

	// Cost ledger
	RecordCost(ctx context.Context, ev cost.Event) error
	SumCostCents(ctx context.Context, lookback time.Duration) (float64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
