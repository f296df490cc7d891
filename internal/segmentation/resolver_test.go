package segmentation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/repository/memory"
)

func seed(t *testing.T, subs ...domain.Subscriber) *memory.SubscriberRepo {
	t.Helper()
	repo := memory.NewSubscriberRepo()
	for i := range subs {
		require.NoError(t, repo.Create(context.Background(), &subs[i]))
	}
	return repo
}

func TestResolve_Segments(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := seed(t,
		domain.Subscriber{Email: "late@x.com", Status: domain.SubscriberActive, SubscribedAt: base.Add(2 * time.Hour)},
		domain.Subscriber{Email: "gone@x.com", Status: domain.SubscriberUnsubscribed, SubscribedAt: base.Add(time.Hour)},
		domain.Subscriber{Email: "b@x.com", Status: domain.SubscriberActive, SubscribedAt: base},
		domain.Subscriber{Email: "a@x.com", Status: domain.SubscriberActive, SubscribedAt: base},
	)
	r := NewResolver(repo)

	active, err := r.Resolve(context.Background(), domain.SegmentActiveOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "late@x.com"}, emailsOf(active))
	for _, s := range active {
		assert.True(t, s.IsActive(), "active_only must never include %s", s.Email)
	}

	all, err := r.Resolve(context.Background(), domain.SegmentAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "gone@x.com", "late@x.com"}, emailsOf(all))
}

func TestResolve_Empty(t *testing.T) {
	repo := seed(t, domain.Subscriber{Email: "gone@x.com", Status: domain.SubscriberUnsubscribed})
	r := NewResolver(repo)

	_, err := r.Resolve(context.Background(), domain.SegmentActiveOnly)
	assert.ErrorIs(t, err, ErrEmptySegment)

	all, err := r.Resolve(context.Background(), domain.SegmentAll)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = NewResolver(memory.NewSubscriberRepo()).Resolve(context.Background(), domain.SegmentAll)
	assert.ErrorIs(t, err, ErrEmptySegment)
}

func TestResolve_UnknownSegment(t *testing.T) {
	_, err := NewResolver(memory.NewSubscriberRepo()).Resolve(context.Background(), domain.Segment("vip"))
	assert.ErrorIs(t, err, ErrUnknownSegment)
}

type failingStore struct{}

func (failingStore) Recipients(context.Context, bool) ([]domain.Subscriber, error) {
	return nil, errors.New("connection refused")
}

func TestResolve_StoreError(t *testing.T) {
	_, err := NewResolver(failingStore{}).Resolve(context.Background(), domain.SegmentAll)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptySegment)
	assert.Contains(t, err.Error(), "connection refused")
}

func emailsOf(subs []domain.Subscriber) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Email
	}
	return out
}
