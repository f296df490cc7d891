package worker

import (
	"context"
	"sync/atomic"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
)

// LogSender is a development transport: it logs each message and reports
// success without contacting any relay.
type LogSender struct {
	sent int64
}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs msg.
func (s *LogSender) Send(_ context.Context, msg *domain.EmailMessage) error {
	atomic.AddInt64(&s.sent, 1)
	logger.Info("log transport: message",
		"email", msg.Email,
		"campaign_id", msg.CampaignID,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTMLContent),
	)
	return nil
}

// Sent returns how many messages were logged.
func (s *LogSender) Sent() int64 {
	return atomic.LoadInt64(&s.sent)
}
