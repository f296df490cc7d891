package subscriber

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu    sync.RWMutex
	store map[string]*domain.Subscriber
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.Subscriber)}
}

func (m *mockRepo) Create(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[s.Email]; ok {
		return ErrDuplicate
	}
	cp := *s
	m.store[s.Email] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Reactivate(_ context.Context, email, name string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[email]
	if !ok || s.IsActive() {
		return nil, ErrDuplicate
	}
	s.Status = domain.SubscriberActive
	s.UnsubscribedAt = nil
	if name != "" {
		s.Name = name
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) MarkUnsubscribed(_ context.Context, email string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[email]
	if !ok || !s.IsActive() {
		return false, nil
	}
	s.Status = domain.SubscriberUnsubscribed
	s.UnsubscribedAt = &at
	return true, nil
}

func (m *mockRepo) Recipients(_ context.Context, activeOnly bool) ([]domain.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Subscriber
	for _, s := range m.store {
		if activeOnly && !s.IsActive() {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.Before(out[j].SubscribedAt) })
	return out, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]domain.Subscriber, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Subscriber
	for _, s := range m.store {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockRepo) Count(_ context.Context, status domain.SubscriberStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.store {
		if status == "" || s.Status == status {
			n++
		}
	}
	return n, nil
}

// prefixVerifier accepts tokens of the form "tok:<email>".
type prefixVerifier struct{}

func (prefixVerifier) Verify(token string) (string, error) {
	email, ok := strings.CutPrefix(token, "tok:")
	if !ok {
		return "", errors.New("bad token")
	}
	return email, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, prefixVerifier{}), repo
}

func TestSubscribe_NewNormalizesEmail(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	res, err := svc.Subscribe(ctx, "  Alice@Example.COM ", "Alice")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if res.Reactivated {
		t.Error("new subscriber reported as reactivated")
	}
	if res.Subscriber.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", res.Subscriber.Email)
	}
	if _, err := repo.Get(ctx, "alice@example.com"); err != nil {
		t.Errorf("subscriber not persisted: %v", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, email := range []string{"", "not-an-email", "a@", "@b.com"} {
		if _, err := svc.Subscribe(ctx, email, ""); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Subscribe(%q): expected ErrInvalidEmail, got %v", email, err)
		}
	}
	if _, err := svc.Subscribe(ctx, "ok@example.com", strings.Repeat("x", 101)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestSubscribe_DuplicateActive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "bob@example.com", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Subscribe(ctx, "BOB@example.com", ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSubscribe_ReactivatesKeepingSubscribedAt(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	if _, err := svc.Subscribe(ctx, "carol@example.com", "Carol"); err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return first.Add(time.Hour) }
	if _, err := svc.Unsubscribe(ctx, "tok:carol@example.com"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Subscribe(ctx, "carol@example.com", "")
	if err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if !res.Reactivated {
		t.Error("expected Reactivated")
	}
	got, _ := repo.Get(ctx, "carol@example.com")
	if !got.IsActive() || got.UnsubscribedAt != nil {
		t.Errorf("expected active with cleared unsubscribed_at, got %+v", got)
	}
	if !got.SubscribedAt.Equal(first) {
		t.Errorf("subscribed_at changed: %v", got.SubscribedAt)
	}
	if got.Name != "Carol" {
		t.Errorf("empty name must not overwrite stored name, got %q", got.Name)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "dave@example.com", ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		email, err := svc.Unsubscribe(ctx, "tok:dave@example.com")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if email != "dave@example.com" {
			t.Errorf("unexpected email %q", email)
		}
	}
	suppressed, err := svc.IsSuppressed(ctx, "dave@example.com")
	if err != nil || !suppressed {
		t.Errorf("expected suppressed, got %v (%v)", suppressed, err)
	}

	// Unknown subscriber still confirms.
	if _, err := svc.Unsubscribe(ctx, "tok:ghost@example.com"); err != nil {
		t.Errorf("unknown subscriber: %v", err)
	}
}

func TestUnsubscribe_InvalidTokenNoMutation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "erin@example.com", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Unsubscribe(ctx, "forged"); err == nil {
		t.Fatal("expected error for invalid token")
	}
	got, _ := repo.Get(ctx, "erin@example.com")
	if !got.IsActive() {
		t.Error("invalid token must not change state")
	}
}

func TestIsSuppressed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "frank@example.com", ""); err != nil {
		t.Fatal(err)
	}
	if s, _ := svc.IsSuppressed(ctx, "Frank@Example.com"); s {
		t.Error("active subscriber reported suppressed")
	}
	if s, _ := svc.IsSuppressed(ctx, "nobody@example.com"); !s {
		t.Error("unknown address must be suppressed")
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := svc.Subscribe(ctx, e, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Unsubscribe(ctx, "tok:b@x.com"); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Unsubscribed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if n, _ := svc.CountActive(ctx); n != 2 {
		t.Errorf("CountActive = %d, want 2", n)
	}
	if _, _, err := svc.List(ctx, ListFilter{Status: "bogus"}); err == nil {
		t.Error("expected error for unknown status filter")
	}
}
