// Package subscriber implements the subscriber store service.
//
// This is the single source of truth for whether an email address should
// receive campaign mail. Subscribers are never deleted; they move between
// active and unsubscribed. The dispatcher calls IsSuppressed before every
// send, so an unsubscribe takes effect even for a batch already in flight.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package subscriber
