package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
)

func TestSubscriberRepo_RecipientsOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriberRepo()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, s := range []domain.Subscriber{
		{Email: "c@x.com", Status: domain.SubscriberActive, SubscribedAt: base.Add(time.Hour)},
		{Email: "b@x.com", Status: domain.SubscriberActive, SubscribedAt: base},
		{Email: "a@x.com", Status: domain.SubscriberUnsubscribed, SubscribedAt: base},
	} {
		s := s
		require.NoError(t, repo.Create(ctx, &s))
	}

	all, err := repo.Recipients(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, emails(all))

	active, err := repo.Recipients(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, emails(active))

	page, total, err := repo.List(ctx, subscriber.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"c@x.com"}, emails(page), "listing is newest first")
}

func TestSubscriberRepo_Snapshots(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriberRepo()
	require.NoError(t, repo.Create(ctx, &domain.Subscriber{Email: "a@x.com", Status: domain.SubscriberActive}))

	got, err := repo.Get(ctx, "a@x.com")
	require.NoError(t, err)
	got.Status = domain.SubscriberUnsubscribed

	again, _ := repo.Get(ctx, "a@x.com")
	assert.True(t, again.IsActive(), "callers must not mutate stored records")

	assert.ErrorIs(t, repo.Create(ctx, &domain.Subscriber{Email: "a@x.com"}), subscriber.ErrDuplicate)
	_, err = repo.Reactivate(ctx, "a@x.com", "")
	assert.ErrorIs(t, err, subscriber.ErrDuplicate)
}

func TestCampaignRepo_TransitionsAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepo()
	require.NoError(t, repo.Create(ctx, &domain.Campaign{ID: "c1", Status: domain.CampaignDraft}))

	assert.ErrorIs(t, repo.TransitionStatus(ctx, "nope", domain.CampaignDraft, domain.CampaignSending), campaign.ErrNotFound)
	assert.ErrorIs(t, repo.TransitionStatus(ctx, "c1", domain.CampaignSending, domain.CampaignSent), campaign.ErrInvalidState)
	require.NoError(t, repo.TransitionStatus(ctx, "c1", domain.CampaignDraft, domain.CampaignSending))
	assert.ErrorIs(t, repo.TransitionStatus(ctx, "c1", domain.CampaignDraft, domain.CampaignSending), campaign.ErrInvalidState)

	assert.ErrorIs(t, repo.Delete(ctx, "c1"), campaign.ErrInvalidState)

	require.NoError(t, repo.Complete(ctx, "c1", domain.Completion{Status: domain.CampaignSent, SentAt: time.Now(), RecipientCount: 2}))
	assert.ErrorIs(t, repo.Complete(ctx, "c1", domain.Completion{Status: domain.CampaignFailed}), campaign.ErrInvalidState)

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSent, got.Status)
	require.NotNil(t, got.RecipientCount)
	assert.Equal(t, 2, *got.RecipientCount)

	require.NoError(t, repo.Create(ctx, &domain.Campaign{ID: "c2", Status: domain.CampaignDraft}))
	require.NoError(t, repo.Delete(ctx, "c2"))
	_, err = repo.Get(ctx, "c2")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func emails(subs []domain.Subscriber) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Email
	}
	return out
}
