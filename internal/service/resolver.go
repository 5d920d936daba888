package service

import (
	"context"
	"fmt"

	"github.com/unclebandit/flowsend-backend/internal/model"
	"github.com/unclebandit/flowsend-backend/internal/repository"
)

// RecipientResolver produces the ordered set of user IDs a campaign
// targets. Implementations must be read-only and deterministic for a
// given data snapshot.
type RecipientResolver interface {
	Resolve(ctx context.Context, campaign *model.Campaign) ([]int, error)
}

// AllUsersResolver targets every known user. Segment-based targeting
// plugs in here once segmentation rules are evaluated.
type AllUsersResolver struct {
	UserRepo repository.UserRepositoryInterface
}

func (r *AllUsersResolver) Resolve(ctx context.Context, campaign *model.Campaign) ([]int, error) {
	users, err := r.UserRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing users for campaign %d: %w", campaign.ID, err)
	}

	ids := make([]int, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

var _ RecipientResolver = (*AllUsersResolver)(nil)
