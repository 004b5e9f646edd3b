package mail

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the server account used for delivery.
type SMTPConfig struct {
	Address  string
	Password string
	Server   string
	Port     int
	Timeout  time.Duration
}

// SMTPSender delivers messages over authenticated STARTTLS SMTP. Each Send
// is one attempt; the worker wraps it with retries.
type SMTPSender struct {
	cfg       SMTPConfig
	templates *Templates
}

func NewSMTPSender(cfg SMTPConfig, templates *Templates) (*SMTPSender, error) {
	if cfg.Address == "" || cfg.Password == "" {
		return nil, fmt.Errorf("smtp: missing credentials")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg, templates: templates}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return fmt.Errorf("smtp: from %q: %w", m.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("smtp: to %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)

	body := m.Body
	if body == "" && m.Template != "" {
		rendered, err := s.templates.Render(m.Template, m.TemplateVars)
		if err != nil {
			return fmt.Errorf("smtp: render %q: %w", m.Template, err)
		}
		body = rendered
	}
	msg.SetBodyString(gomail.TypeTextPlain, body)

	for _, path := range m.Attachments {
		msg.AttachFile(path)
		log.Debug("Attached file", "id", m.ID, "path", path)
	}

	client, err := gomail.NewClient(s.cfg.Server,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Address),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp: client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
