package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository in memory.
type SubscriberRepo struct {
	mu    sync.RWMutex
	store map[string]*domain.Subscriber
}

// NewSubscriberRepo creates an empty in-memory subscriber repository.
func NewSubscriberRepo() *SubscriberRepo {
	return &SubscriberRepo{store: make(map[string]*domain.Subscriber)}
}

func (r *SubscriberRepo) Create(_ context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[s.Email]; ok {
		return subscriber.ErrDuplicate
	}
	r.store[s.Email] = cloneSubscriber(s)
	return nil
}

func (r *SubscriberRepo) Get(_ context.Context, email string) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.store[email]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	return cloneSubscriber(s), nil
}

func (r *SubscriberRepo) Reactivate(_ context.Context, email, name string) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[email]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	if s.IsActive() {
		return nil, subscriber.ErrDuplicate
	}
	s.Status = domain.SubscriberActive
	s.UnsubscribedAt = nil
	if name != "" {
		s.Name = name
	}
	return cloneSubscriber(s), nil
}

func (r *SubscriberRepo) MarkUnsubscribed(_ context.Context, email string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[email]
	if !ok || !s.IsActive() {
		return false, nil
	}
	s.Status = domain.SubscriberUnsubscribed
	s.UnsubscribedAt = &at
	return true, nil
}

func (r *SubscriberRepo) Recipients(_ context.Context, activeOnly bool) ([]domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Subscriber, 0, len(r.store))
	for _, s := range r.store {
		if activeOnly && !s.IsActive() {
			continue
		}
		out = append(out, *cloneSubscriber(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscribedAt.Equal(out[j].SubscribedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].SubscribedAt.Before(out[j].SubscribedAt)
	})
	return out, nil
}

func (r *SubscriberRepo) List(_ context.Context, f subscriber.ListFilter) ([]domain.Subscriber, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Subscriber
	for _, s := range r.store {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, *cloneSubscriber(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscribedAt.Equal(out[j].SubscribedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].SubscribedAt.After(out[j].SubscribedAt)
	})
	return paginate(out, f.Offset, f.Limit), len(out), nil
}

func (r *SubscriberRepo) Count(_ context.Context, status domain.SubscriberStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.store {
		if status == "" || s.Status == status {
			n++
		}
	}
	return n, nil
}

func cloneSubscriber(s *domain.Subscriber) *domain.Subscriber {
	cp := *s
	if s.UnsubscribedAt != nil {
		t := *s.UnsubscribedAt
		cp.UnsubscribedAt = &t
	}
	return &cp
}
