package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository in memory. Status changes are
// compare-and-set under a mutex.
type CampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

// NewCampaignRepo creates an empty in-memory campaign repository.
func NewCampaignRepo() *CampaignRepo {
	return &CampaignRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (r *CampaignRepo) Create(_ context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *CampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (r *CampaignRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *cloneCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Offset, f.Limit), len(out), nil
}

func (r *CampaignRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return campaign.ErrInvalidState
	}
	delete(r.campaigns, id)
	return nil
}

func (r *CampaignRepo) TransitionStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != from || !from.CanTransitionTo(to) {
		return campaign.ErrInvalidState
	}
	c.Status = to
	return nil
}

func (r *CampaignRepo) Complete(_ context.Context, id string, comp domain.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if !c.Status.CanTransitionTo(comp.Status) || c.Status != domain.CampaignSending {
		return campaign.ErrInvalidState
	}
	sentAt := comp.SentAt
	count := comp.RecipientCount
	c.Status = comp.Status
	c.SentAt = &sentAt
	c.RecipientCount = &count
	if comp.FailureReason != nil {
		reason := *comp.FailureReason
		c.FailureReason = &reason
	}
	return nil
}

func (r *CampaignRepo) Count(_ context.Context, status domain.CampaignStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.campaigns {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

func cloneCampaign(c *domain.Campaign) *domain.Campaign {
	cp := *c
	if c.SentAt != nil {
		t := *c.SentAt
		cp.SentAt = &t
	}
	if c.RecipientCount != nil {
		n := *c.RecipientCount
		cp.RecipientCount = &n
	}
	if c.FailureReason != nil {
		s := *c.FailureReason
		cp.FailureReason = &s
	}
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
