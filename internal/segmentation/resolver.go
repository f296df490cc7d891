// Package segmentation resolves a campaign's target segment into the ordered
// list of subscribers to attempt. Segments are evaluated at send time, never
// cached on the campaign.
package segmentation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/campaign-mailer/internal/domain"
)

var (
	// ErrEmptySegment is a soft error: the segment resolved to nobody. The
	// send still completes, as a failed campaign.
	ErrEmptySegment = errors.New("segment matched no subscribers")
	// ErrUnknownSegment is returned for segment keys outside the closed set.
	ErrUnknownSegment = errors.New("unknown segment")
)

// Store is the read side of the subscriber store the resolver needs.
type Store interface {
	Recipients(ctx context.Context, activeOnly bool) ([]domain.Subscriber, error)
}

// Resolver computes recipient lists from segment rules.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver reading from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the subscribers matching segment, ordered by subscribed_at
// ascending with ties broken by email.
//
//	all          every subscriber regardless of status
//	active_only  subscribers whose status is active
func (r *Resolver) Resolve(ctx context.Context, segment domain.Segment) ([]domain.Subscriber, error) {
	var activeOnly bool
	switch segment {
	case domain.SegmentAll:
	case domain.SegmentActiveOnly:
		activeOnly = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSegment, segment)
	}

	subs, err := r.store.Recipients(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("resolve segment %s: %w", segment, err)
	}
	if len(subs) == 0 {
		return nil, ErrEmptySegment
	}
	return subs, nil
}
