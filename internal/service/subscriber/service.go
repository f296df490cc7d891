package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
)

const maxNameLength = 100

// TokenVerifier resolves an unsubscribe token to the email it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Service implements subscriber business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	tokens   TokenVerifier
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a subscriber service backed by the given repository.
func NewService(repo Repository, tokens TokenVerifier) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubscribeResult describes the outcome of Subscribe.
type SubscribeResult struct {
	Subscriber  *domain.Subscriber `json:"subscriber"`
	Reactivated bool               `json:"reactivated"`
}

// Subscribe adds email to the list. A previously unsubscribed address is
// reactivated with its original subscribed_at kept; an already active one
// yields ErrDuplicate.
func (s *Service) Subscribe(ctx context.Context, email, name string) (*SubscribeResult, error) {
	email = domain.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, ErrInvalidEmail
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	existing, err := s.repo.Get(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		sub := &domain.Subscriber{
			Email:        email,
			Name:         name,
			Status:       domain.SubscriberActive,
			SubscribedAt: s.now(),
		}
		if err := s.repo.Create(ctx, sub); err != nil {
			return nil, err
		}
		logger.Info("subscriber created", "email", email)
		return &SubscribeResult{Subscriber: sub}, nil
	case err != nil:
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	if existing.IsActive() {
		return nil, ErrDuplicate
	}
	sub, err := s.repo.Reactivate(ctx, email, name)
	if err != nil {
		return nil, err
	}
	logger.Info("subscriber reactivated", "email", email)
	return &SubscribeResult{Subscriber: sub, Reactivated: true}, nil
}

// Unsubscribe verifies token and marks the subscriber unsubscribed. It is
// idempotent: repeating it, or using a valid token for an address that is no
// longer on file, succeeds and returns the email.
func (s *Service) Unsubscribe(ctx context.Context, token string) (string, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	changed, err := s.repo.MarkUnsubscribed(ctx, email, s.now())
	if err != nil {
		return "", fmt.Errorf("unsubscribe: %w", err)
	}
	if changed {
		logger.Info("subscriber unsubscribed", "email", email)
	}
	return email, nil
}

// IsSuppressed reports whether email must not receive campaign mail. Unknown
// addresses are suppressed.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	sub, err := s.repo.Get(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !sub.IsActive(), nil
}

// Get returns the subscriber for email.
func (s *Service) Get(ctx context.Context, email string) (*domain.Subscriber, error) {
	return s.repo.Get(ctx, domain.NormalizeEmail(email))
}

// Recipients returns the ordered subscriber snapshot used for targeting.
func (s *Service) Recipients(ctx context.Context, activeOnly bool) ([]domain.Subscriber, error) {
	return s.repo.Recipients(ctx, activeOnly)
}

// List returns subscribers matching the given filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Subscriber, int, error) {
	if filter.Status != "" && filter.Status != domain.SubscriberActive && filter.Status != domain.SubscriberUnsubscribed {
		return nil, 0, fmt.Errorf("unknown subscriber status %q", filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// CountActive returns the number of active subscribers.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, domain.SubscriberActive)
}

// Stats holds subscriber totals for the dashboard.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Unsubscribed int `json:"unsubscribed"`
}

// GetStats computes subscriber statistics for the dashboard.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	active, err := s.repo.Count(ctx, domain.SubscriberActive)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, Active: active, Unsubscribed: total - active}, nil
}
