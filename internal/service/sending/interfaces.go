// Package sending dispatches a campaign to its resolved recipients.
//
// The Dispatcher renders one message per recipient and hands it to a
// Transport. Transports (SMTP, SES, log) live in the worker package and
// implement the Transport interface defined here, so the dispatcher stays
// provider-agnostic and tests can inject fakes.
package sending

import (
	"context"
	"errors"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// ErrTransportUnavailable marks a transport failure that no later recipient
// can succeed past (relay unreachable, client not configured). Transports
// wrap it; the dispatcher aborts the rest of the batch when it sees it.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Transport sends a single message. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, msg *domain.EmailMessage) error
}

// SuppressionChecker performs the live pre-send check. The dispatcher calls
// it for every recipient right before delivery.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// Resolver computes the recipient list for a segment.
type Resolver interface {
	Resolve(ctx context.Context, segment domain.Segment) ([]domain.Subscriber, error)
}

// Renderer builds the HTML and text bodies for a recipient.
type Renderer interface {
	Render(id domain.TemplateID, c *domain.Campaign, sub *domain.Subscriber) (string, error)
	RenderText(c *domain.Campaign, sub *domain.Subscriber) string
	UnsubscribeURL(email string) string
}
