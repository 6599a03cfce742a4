package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"coolguard/internal/models"
)

// ErrNoRecipient signals that a channel has no configured destination.
var ErrNoRecipient = errors.New("no recipient configured for channel")

// Sender delivers one alert on one channel. Implementations must not panic;
// failures are returned and recorded on the notification event.
type Sender interface {
	Send(ctx context.Context, channel models.Channel, subject, body string) error
}

// SMTPConfig holds mail delivery settings. The SMS channel is an
// email-to-SMS gateway address (e.g. 5551234567@vtext.com), so a single
// SMTP account serves both channels.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	EmailTo  string
	SMSTo    string
}

// SMTPSender delivers alerts over SMTP with STARTTLS.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a mail sender for the configured channels.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send implements the Sender interface
func (s *SMTPSender) Send(ctx context.Context, channel models.Channel, subject, body string) error {
	to := s.recipient(channel)
	if to == "" {
		return fmt.Errorf("%w: %s", ErrNoRecipient, channel)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp delivery to %s failed: %w", channel, err)
	}

	return nil
}

func (s *SMTPSender) recipient(channel models.Channel) string {
	switch channel {
	case models.ChannelEmail:
		return s.cfg.EmailTo
	case models.ChannelSMS:
		return s.cfg.SMSTo
	default:
		return ""
	}
}
