package similarity

import (
	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/model"
)

// Weighting of the three field similarities in the combined score.
const (
	nameWeight    = 0.5
	phoneWeight   = 0.3
	addressWeight = 0.2
)

// DefaultThreshold is the minimum combined similarity for a pre-filter match.
const DefaultThreshold = 0.85

// exactAddressNameFloor is the looser name-similarity bar applied when two
// records share an identical normalized address.
const exactAddressNameFloor = 0.5

// Breakdown carries the per-field and combined similarity of one comparison.
type Breakdown struct {
	Name     float64 `json:"name"`
	Phone    float64 `json:"phone"`
	Address  float64 `json:"address"`
	Combined float64 `json:"combined"`
}

// Matcher is the cheap Levenshtein-based pre-filter that decides whether a
// candidate pair is worth escalating to LLM verification.
type Matcher struct {
	threshold            float64
	exactAddressOverride bool
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithThreshold overrides the combined-similarity threshold.
func WithThreshold(t float64) MatcherOption {
	return func(m *Matcher) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// WithExactAddressOverride toggles the looser name bar for records whose
// normalized addresses match exactly.
func WithExactAddressOverride(on bool) MatcherOption {
	return func(m *Matcher) {
		m.exactAddressOverride = on
	}
}

// NewMatcher creates a pre-filter matcher with the default threshold.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		threshold:            DefaultThreshold,
		exactAddressOverride: true,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the configured combined-similarity threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Score computes the per-field and weighted combined similarity of two
// business records.
func (m *Matcher) Score(b1, b2 *model.Business) Breakdown {
	bd := Breakdown{
		Name: Ratio(Normalize(b1.Name), Normalize(b2.Name)),
	}

	// Phones only count when both are present and digit-identical.
	p1, p2 := NormalizePhone(b1.Phone), NormalizePhone(b2.Phone)
	if p1 != "" && p2 != "" && p1 == p2 {
		bd.Phone = 1.0
	}

	if b1.Address != "" && b2.Address != "" {
		bd.Address = Ratio(Normalize(b1.Address), Normalize(b2.Address))
	}

	bd.Combined = nameWeight*bd.Name + phoneWeight*bd.Phone + addressWeight*bd.Address
	return bd
}

// PotentialDuplicates reports whether two records pass the pre-filter.
// Self-pairs never match regardless of similarity.
func (m *Matcher) PotentialDuplicates(b1, b2 *model.Business) bool {
	if b1.ID == b2.ID {
		return false
	}

	bd := m.Score(b1, b2)

	if m.exactAddressOverride && b1.Address != "" && b2.Address != "" &&
		Normalize(b1.Address) == Normalize(b2.Address) && bd.Name >= exactAddressNameFloor {
		zap.L().Debug("prefilter: exact address override",
			zap.Int64("business1_id", b1.ID),
			zap.Int64("business2_id", b2.ID),
			zap.Float64("name_similarity", bd.Name),
		)
		return true
	}

	return bd.Combined >= m.threshold
}
