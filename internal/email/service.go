package email

import (
	"context"
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
	gomail "gopkg.in/gomail.v2"
)

// Attachment is an in-memory file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Service interface {
	Send(ctx context.Context, to, subject, body string) error
	SendHTML(ctx context.Context, to, subject, html string) error
	SendWithAttachment(ctx context.Context, to, subject, body string, att Attachment) error
}

// SMTPConfig is read from the environment with the SMTP_ prefix.
type SMTPConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"noreply@clinic.local"`
}

func LoadSMTPConfig() (*SMTPConfig, error) {
	var cfg SMTPConfig
	if err := envconfig.Process("SMTP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load smtp config: %w", err)
	}
	return &cfg, nil
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg *SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) Send(ctx context.Context, to, subject, body string) error {
	m := s.newMessage(to, subject)
	m.SetBody("text/plain", body)
	return s.send(ctx, m)
}

func (s *smtpService) SendHTML(ctx context.Context, to, subject, html string) error {
	m := s.newMessage(to, subject)
	m.SetBody("text/html", html)
	return s.send(ctx, m)
}

func (s *smtpService) SendWithAttachment(ctx context.Context, to, subject, body string, att Attachment) error {
	m := s.newMessage(to, subject)
	m.SetBody("text/plain", body)
	m.Attach(att.Filename,
		gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(att.Data)
			return err
		}))
	return s.send(ctx, m)
}

func (s *smtpService) newMessage(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

// gomail's dialer has no context hook, so honor cancellation before
// the blocking send.
func (s *smtpService) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
