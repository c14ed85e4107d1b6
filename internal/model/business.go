// Package model defines the lead and candidate-pair record types shared
// across the dedupe pipeline.
package model

import (
	"time"
)

// BusinessStatus is the lifecycle state of a business record.
type BusinessStatus string

// Business lifecycle states.
const (
	BusinessStatusPending           BusinessStatus = "pending"
	BusinessStatusEnriched          BusinessStatus = "enriched"
	BusinessStatusScored            BusinessStatus = "scored"
	BusinessStatusMerged            BusinessStatus = "merged"
	BusinessStatusSkippedModernSite BusinessStatus = "skipped_modern_site"
)

// Business is a scraped lead. A record with non-nil MergedInto is terminal:
// it must never be treated as a live lead and carries no child rows after
// the merge that retired it completes.
type Business struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Address     string `json:"address,omitempty" db:"address"`
	City        string `json:"city,omitempty" db:"city"`
	State       string `json:"state,omitempty" db:"state"`
	Zip         string `json:"zip,omitempty" db:"zip"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	Email       string `json:"email,omitempty" db:"email"`
	Website     string `json:"website,omitempty" db:"website"`
	Category    string `json:"category,omitempty" db:"category"`
	Description string `json:"description,omitempty" db:"description"`

	Status     BusinessStatus `json:"status" db:"status"`
	Score      *float64       `json:"score,omitempty" db:"score"`
	MergedInto *int64         `json:"merged_into,omitempty" db:"merged_into"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsMerged reports whether the record has been retired into another record.
func (b *Business) IsMerged() bool {
	return b.MergedInto != nil
}
