package domain

import (
	"strings"
	"time"
)

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is a newsletter recipient. Records are never deleted, only
// status-transitioned.
type Subscriber struct {
	Email          string           `json:"email" db:"email"`
	Name           string           `json:"name,omitempty" db:"name"`
	Status         SubscriberStatus `json:"status" db:"status"`
	SubscribedAt   time.Time        `json:"subscribed_at" db:"subscribed_at"`
	UnsubscribedAt *time.Time       `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
}

// IsActive reports whether the subscriber may receive campaign mail.
func (s *Subscriber) IsActive() bool {
	return s.Status == SubscriberActive
}

// NormalizeEmail returns the canonical form used for identity comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
