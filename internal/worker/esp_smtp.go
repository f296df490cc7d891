package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/sending"
)

// SMTPConfig holds relay connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	// InsecureSkipVerify disables certificate checks after STARTTLS. Only
	// for relays on private networks with self-signed certificates.
	InsecureSkipVerify bool
	// AllowPlaintextAuth permits AUTH on a session that never reached TLS.
	// Without it credentials are only sent after a successful STARTTLS.
	AllowPlaintextAuth bool
}

// SMTPSender delivers each message in its own SMTP session.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP transport.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Send delivers a single message. Connection-level failures wrap
// sending.ErrTransportUnavailable; rejections for this recipient do not.
func (s *SMTPSender) Send(ctx context.Context, msg *domain.EmailMessage) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("SMTP host not configured: %w", sending.ErrTransportUnavailable)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), s.cfg.Host)
	body, err := buildMIMEMessage(msg, messageID)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendSMTP(ctx, addr, msg.FromEmail, msg.Email, body); err != nil {
		return err
	}

	logger.Debug("smtp: message sent", "email", msg.Email, "message_id", messageID)
	return nil
}

// sendSMTP performs the SMTP transaction for one recipient.
func (s *SMTPSender) sendSMTP(ctx context.Context, addr, from, to string, msg []byte) error {
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP connect to %s: %v: %w", addr, err, sending.ErrTransportUnavailable)
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP greeting from %s: %v: %w", addr, err, sending.ErrTransportUnavailable)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %v: %w", err, sending.ErrTransportUnavailable)
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		if _, isTLS := c.TLSConnectionState(); !isTLS && !s.cfg.AllowPlaintextAuth {
			return fmt.Errorf("SMTP relay %s did not negotiate TLS; refusing to send credentials: %w", addr, sending.ErrTransportUnavailable)
		}
		if err := c.Auth(&plainAuth{user: s.cfg.Username, pass: s.cfg.Password}); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	// The message was accepted at DATA close; a failed QUIT does not undo
	// delivery.
	_ = c.Quit()
	return nil
}

// plainAuth implements smtp.Auth without the TLS requirement that the
// standard library's PlainAuth enforces, for relays on private networks.
type plainAuth struct {
	user, pass string
}

func (a *plainAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.user + "\x00" + a.pass), nil
}

func (a *plainAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

// buildMIMEMessage renders msg as a multipart/alternative RFC 5322 message.
func buildMIMEMessage(msg *domain.EmailMessage, messageID string) ([]byte, error) {
	var buf bytes.Buffer
	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.FromName), msg.FromEmail)
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", messageID)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	if msg.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", msg.ReplyTo)
	}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := msg.Headers[k]
		if strings.ContainsAny(k+v, "\r\n") {
			return nil, fmt.Errorf("header %q contains a line break", k)
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	boundary := "=_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	if msg.TextContent != "" {
		if err := writeQPPart(&buf, boundary, "text/plain", msg.TextContent); err != nil {
			return nil, err
		}
	}
	if err := writeQPPart(&buf, boundary, "text/html", msg.HTMLContent); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func writeQPPart(buf *bytes.Buffer, boundary, contentType, body string) error {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	if err := qp.Close(); err != nil {
		return err
	}
	buf.WriteString("\r\n")
	return nil
}
