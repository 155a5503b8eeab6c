package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const signature = "-- dotgrab"

type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// To is one address or a comma separated list.
	To      string
	Timeout time.Duration
}

// Email sends the summary over SMTP with implicit TLS.
type Email struct {
	opts EmailOptions
}

func NewEmail(opts EmailOptions) (*Email, error) {
	opts.Host = strings.TrimSpace(opts.Host)
	if opts.Host == "" {
		return nil, fmt.Errorf("email: missing smtp host")
	}
	if len(recipients(opts.To)) == 0 {
		return nil, fmt.Errorf("email: missing recipient")
	}
	if strings.TrimSpace(opts.From) == "" {
		return nil, fmt.Errorf("email: missing sender")
	}
	if opts.Port == 0 {
		opts.Port = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Email{opts: opts}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, subject, body string) error {
	msg, err := e.message(subject, body)
	if err != nil {
		return err
	}
	opts := []mail.Option{
		mail.WithPort(e.opts.Port),
		mail.WithSSL(),
		mail.WithTimeout(e.opts.Timeout),
	}
	if e.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.opts.Username),
			mail.WithPassword(e.opts.Password),
		)
	}
	c, err := mail.NewClient(e.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send via %s:%d: %w", e.opts.Host, e.opts.Port, err)
	}
	return nil
}

func (e *Email) message(subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(strings.TrimSpace(e.opts.From)); err != nil {
		return nil, fmt.Errorf("email: sender: %w", err)
	}
	if err := m.To(recipients(e.opts.To)...); err != nil {
		return nil, fmt.Errorf("email: recipient: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, frame(body))
	return m, nil
}

func frame(body string) string {
	return "\n" + body + "\n\n" + signature
}

func recipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
