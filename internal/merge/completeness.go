// Package merge selects the surviving record of a confirmed duplicate pair
// and folds the other into it.
package merge

import (
	"strings"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// CompletenessScore counts how many of a business's descriptive fields are
// populated. More complete records make better merge survivors because they
// lose less data when the other record is folded in.
func CompletenessScore(b *model.Business) int {
	if b == nil {
		return 0
	}
	score := 0
	for _, field := range []string{
		b.Name, b.Address, b.City, b.State, b.Zip,
		b.Phone, b.Email, b.Website, b.Category, b.Description,
	} {
		if strings.TrimSpace(field) != "" {
			score++
		}
	}
	return score
}

// SelectPrimary picks the record that survives a merge. The more complete
// record wins; on a tie the older record wins, and on a full tie the lower
// id wins so the choice is deterministic.
func SelectPrimary(b1, b2 *model.Business) (primary, secondary *model.Business) {
	s1, s2 := CompletenessScore(b1), CompletenessScore(b2)
	switch {
	case s1 > s2:
		return b1, b2
	case s2 > s1:
		return b2, b1
	}
	if !b1.CreatedAt.Equal(b2.CreatedAt) {
		if b1.CreatedAt.Before(b2.CreatedAt) {
			return b1, b2
		}
		return b2, b1
	}
	if b1.ID <= b2.ID {
		return b1, b2
	}
	return b2, b1
}
