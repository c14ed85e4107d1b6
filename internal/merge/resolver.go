package merge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/store"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	ChildCounts(ctx context.Context, businessID int64) (*store.ChildCounts, error)
	MergeBusinesses(ctx context.Context, primaryID, secondaryID int64) error
}

// Plan describes a merge before it runs.
type Plan struct {
	Primary   *model.Business   `json:"primary"`
	Secondary *model.Business   `json:"secondary"`
	Children  store.ChildCounts `json:"children"`
}

// Resolver merges confirmed duplicate businesses.
type Resolver struct {
	store Store
}

func NewResolver(s Store) *Resolver {
	return &Resolver{store: s}
}

// Preview selects the surviving record and reports what a merge would move,
// without writing anything.
func (r *Resolver) Preview(ctx context.Context, id1, id2 int64) (*Plan, error) {
	if id1 == id2 {
		return nil, eris.Errorf("merge: cannot merge business %d with itself", id1)
	}

	b1, err := r.store.GetBusiness(ctx, id1)
	if err != nil {
		return nil, err
	}
	b2, err := r.store.GetBusiness(ctx, id2)
	if err != nil {
		return nil, err
	}
	if b1 == nil {
		return nil, eris.Errorf("merge: business not found: %d", id1)
	}
	if b2 == nil {
		return nil, eris.Errorf("merge: business not found: %d", id2)
	}
	if b1.IsMerged() {
		return nil, eris.Errorf("merge: business %d is already merged", id1)
	}
	if b2.IsMerged() {
		return nil, eris.Errorf("merge: business %d is already merged", id2)
	}

	primary, secondary := SelectPrimary(b1, b2)

	children, err := r.store.ChildCounts(ctx, secondary.ID)
	if err != nil {
		return nil, err
	}

	return &Plan{Primary: primary, Secondary: secondary, Children: *children}, nil
}

// Execute merges the pair, repointing the secondary's child rows to the
// primary and marking the secondary merged, all in one transaction. The
// surviving record is returned.
func (r *Resolver) Execute(ctx context.Context, id1, id2 int64) (*model.Business, error) {
	plan, err := r.Preview(ctx, id1, id2)
	if err != nil {
		return nil, err
	}

	if err := r.store.MergeBusinesses(ctx, plan.Primary.ID, plan.Secondary.ID); err != nil {
		return nil, err
	}

	zap.L().Info("merged businesses",
		zap.Int64("primary_id", plan.Primary.ID),
		zap.Int64("secondary_id", plan.Secondary.ID),
		zap.Int("children_moved", plan.Children.Total()))

	return plan.Primary, nil
}
