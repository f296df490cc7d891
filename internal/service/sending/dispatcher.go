package sending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/segmentation"
)

// DefaultMaxReportedErrors caps SendResult.Errors when the config leaves it unset.
const DefaultMaxReportedErrors = 20

// Sender identifies the From/Reply-To of outgoing messages.
type Sender struct {
	FromName  string
	FromEmail string
	ReplyTo   string
}

// DispatcherConfig holds dispatcher collaborators and limits.
type DispatcherConfig struct {
	Resolver          Resolver
	Suppression       SuppressionChecker
	Renderer          Renderer
	Transport         Transport
	Sender            Sender
	MaxReportedErrors int
}

// Dispatcher sends a campaign to every eligible recipient of its segment.
// One recipient's failure never stops the batch unless it wraps
// ErrTransportUnavailable or the context is done.
type Dispatcher struct {
	cfg DispatcherConfig
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxReportedErrors <= 0 {
		cfg.MaxReportedErrors = DefaultMaxReportedErrors
	}
	return &Dispatcher{cfg: cfg}
}

// Send resolves c's segment and delivers one message per eligible recipient.
// It never returns an error: every problem is folded into the SendResult so
// the caller can always complete the campaign.
func (d *Dispatcher) Send(ctx context.Context, c *domain.Campaign) domain.SendResult {
	start := time.Now()
	defer func() { dispatchDurationHist.Observe(time.Since(start).Seconds()) }()

	var res domain.SendResult
	log := logger.With(ctx, "campaign_id", c.ID)

	recipients, err := d.cfg.Resolver.Resolve(ctx, c.TargetSegment)
	if errors.Is(err, segmentation.ErrEmptySegment) {
		log.Warn("segment resolved to no subscribers", "segment", c.TargetSegment)
		res.EmptySegment = true
		return res
	}
	if err != nil {
		log.Error("resolve recipients failed", "error", err)
		res.Fatal = err.Error()
		return res
	}

	log.Info("dispatch started", "segment", c.TargetSegment, "recipients", len(recipients))

	for i := range recipients {
		sub := &recipients[i]

		if err := ctx.Err(); err != nil {
			d.abort(ctx, &res, recipients[i:], err)
			break
		}

		suppressed, err := d.cfg.Suppression.IsSuppressed(ctx, sub.Email)
		if err != nil {
			res.Attempted++
			d.recordFailure(&res, sub.Email, fmt.Errorf("suppression check: %w", err))
			continue
		}
		if suppressed {
			res.Skipped++
			recipientsProcessedCounter.WithLabelValues("skipped").Inc()
			continue
		}

		err = d.deliver(ctx, c, sub)
		if err == nil {
			res.Attempted++
			res.Delivered++
			recipientsProcessedCounter.WithLabelValues("delivered").Inc()
			continue
		}

		if errors.Is(err, ErrTransportUnavailable) || ctx.Err() != nil {
			res.Attempted++
			d.recordFailure(&res, sub.Email, err)
			d.abort(ctx, &res, recipients[i+1:], err)
			break
		}
		res.Attempted++
		d.recordFailure(&res, sub.Email, err)
		log.Warn("delivery failed", "email", sub.Email, "error", err)
	}

	log.Info("dispatch finished",
		"attempted", res.Attempted,
		"delivered", res.Delivered,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", time.Since(start).String(),
	)
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, c *domain.Campaign, sub *domain.Subscriber) error {
	htmlBody, err := d.cfg.Renderer.Render(c.TemplateID, c, sub)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	unsubURL := d.cfg.Renderer.UnsubscribeURL(sub.Email)
	msg := &domain.EmailMessage{
		ID:          uuid.New().String(),
		CampaignID:  c.ID,
		Email:       sub.Email,
		FromName:    d.cfg.Sender.FromName,
		FromEmail:   d.cfg.Sender.FromEmail,
		ReplyTo:     d.cfg.Sender.ReplyTo,
		Subject:     c.Subject,
		HTMLContent: htmlBody,
		TextContent: d.cfg.Renderer.RenderText(c, sub),
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + unsubURL + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
			"X-Campaign-ID":         c.ID,
		},
	}

	sendStart := time.Now()
	err = d.cfg.Transport.Send(ctx, msg)
	transportSendDurationHist.Observe(time.Since(sendStart).Seconds())
	return err
}

// abort marks every still-eligible recipient in rest as failed with cause.
// Suppression is still honored so unsubscribed addresses stay skipped.
func (d *Dispatcher) abort(ctx context.Context, res *domain.SendResult, rest []domain.Subscriber, cause error) {
	batchAbortsCounter.Inc()
	res.Fatal = cause.Error()
	logger.With(ctx).Error("dispatch aborted", "error", cause, "remaining", len(rest))

	// The batch context may already be cancelled; the suppression reads only
	// decide how the remaining recipients are counted.
	checkCtx := context.WithoutCancel(ctx)
	for i := range rest {
		suppressed, err := d.cfg.Suppression.IsSuppressed(checkCtx, rest[i].Email)
		if err == nil && suppressed {
			res.Skipped++
			recipientsProcessedCounter.WithLabelValues("skipped").Inc()
			continue
		}
		res.Attempted++
		d.recordFailure(res, rest[i].Email, cause)
	}
}

func (d *Dispatcher) recordFailure(res *domain.SendResult, email string, err error) {
	res.Failed++
	recipientsProcessedCounter.WithLabelValues("failed").Inc()
	if len(res.Errors) < d.cfg.MaxReportedErrors {
		res.Errors = append(res.Errors, domain.RecipientError{Email: email, Error: err.Error()})
		return
	}
	res.OmittedErrors++
}
