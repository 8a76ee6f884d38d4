package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the mail server endpoint and credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer abstracts the go-mail client so tests can observe messages.
type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSink sends HTML email through an SMTP server using STARTTLS.
type SMTPSink struct {
	cfg    SMTPConfig
	logger *log.Logger
	dial   func(cfg SMTPConfig) (dialer, error)
}

// NewSMTPSink creates an SMTPSink.
func NewSMTPSink(cfg SMTPConfig, logger *log.Logger) *SMTPSink {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSink{cfg: cfg, logger: logger, dial: newMailClient}
}

func newMailClient(cfg SMTPConfig) (dialer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Send builds an HTML message and delivers it. Failures after validation are
// logged and reported as false.
func (s *SMTPSink) Send(ctx context.Context, recipients []string, subject, body string) (bool, error) {
	if len(recipients) == 0 {
		return false, ErrNoRecipients
	}
	msg, err := s.buildMessage(recipients, subject, body)
	if err != nil {
		s.logger.Printf("Failed to build email: %v", err)
		return false, nil
	}
	client, err := s.dial(s.cfg)
	if err != nil {
		s.logger.Printf("Failed to create mail client: %v", err)
		return false, nil
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Printf("Failed to send email: %v", err)
		return false, nil
	}
	s.logger.Printf("Sent %q to %d recipient(s)", subject, len(recipients))
	return true, nil
}

func (s *SMTPSink) buildMessage(recipients []string, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
