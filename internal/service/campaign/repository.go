package campaign

import (
	"context"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new draft campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Delete removes a draft campaign. Returns ErrNotFound if it doesn't
	// exist and ErrInvalidState if it is no longer a draft.
	Delete(ctx context.Context, id string) error

	// TransitionStatus moves a campaign from one status to another in a
	// single conditional write. Returns ErrNotFound if the campaign doesn't
	// exist and ErrInvalidState if its current status is not from.
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error

	// Complete moves a sending campaign to its terminal status and records
	// the completion fields. Returns ErrInvalidState unless the campaign is
	// currently sending.
	Complete(ctx context.Context, id string, c domain.Completion) error

	// Count returns the number of campaigns with the given status, or all
	// campaigns when status is empty.
	Count(ctx context.Context, status domain.CampaignStatus) (int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status domain.CampaignStatus
	Limit  int
	Offset int
}
