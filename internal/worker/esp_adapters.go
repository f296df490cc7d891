// Package worker contains the campaign processor and the transport adapters
// that deliver individual messages.
//
// Transport adapters are split into individual files:
//   - esp_smtp.go: any SMTP relay (STARTTLS when offered, PLAIN auth)
//   - esp_ses.go:  AWS SES v2
//   - esp_log.go:  development transport that only logs
//
// rate_limiter.go wraps any of them with a Redis-backed quota shared by all
// server instances.
//
// All adapters implement sending.Transport. Failures that no later
// recipient can get past wrap sending.ErrTransportUnavailable.
package worker

import (
	"fmt"

	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/service/sending"
)

// NewTransport builds the transport selected by mail.transport.
func NewTransport(cfg config.MailConfig) (sending.Transport, error) {
	switch cfg.Transport {
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Timeout:  cfg.SMTP.Timeout(),

			AllowPlaintextAuth: cfg.SMTP.AllowPlaintextAuth,
		}), nil
	case "ses":
		return NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region), nil
	case "log":
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
