package subscriber

import (
	"context"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// Repository defines the data access contract for subscribers. Emails passed
// in are already normalized.
type Repository interface {
	// Create inserts a new subscriber. Returns ErrDuplicate if the email
	// already exists in any status.
	Create(ctx context.Context, s *domain.Subscriber) error

	// Get returns a subscriber by email. Returns ErrNotFound if absent.
	Get(ctx context.Context, email string) (*domain.Subscriber, error)

	// Reactivate flips an unsubscribed record back to active and clears
	// unsubscribed_at. A non-empty name replaces the stored one. Returns
	// ErrDuplicate if the record is not currently unsubscribed.
	Reactivate(ctx context.Context, email, name string) (*domain.Subscriber, error)

	// MarkUnsubscribed moves an active subscriber to unsubscribed. It reports
	// whether a row changed; unknown or already unsubscribed emails are not
	// errors.
	MarkUnsubscribed(ctx context.Context, email string, at time.Time) (bool, error)

	// Recipients returns subscribers ordered by subscribed_at ascending, ties
	// broken by email. With activeOnly set only active subscribers are returned.
	Recipients(ctx context.Context, activeOnly bool) ([]domain.Subscriber, error)

	// List returns subscribers matching the filter, newest first, and the
	// total number of matches.
	List(ctx context.Context, filter ListFilter) ([]domain.Subscriber, int, error)

	// Count returns the number of subscribers with the given status, or all
	// subscribers when status is empty.
	Count(ctx context.Context, status domain.SubscriberStatus) (int, error)
}

// ListFilter controls pagination and filtering for subscriber listings.
type ListFilter struct {
	Status domain.SubscriberStatus
	Limit  int
	Offset int
}
