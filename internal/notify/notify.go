// Package notify delivers outbound messages such as password-reset links.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type MailgunConfig struct {
	Domain string
	APIKey string
	From   string
}

type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunSender(cfg MailgunConfig) *MailgunSender {
	return &MailgunSender{
		mg:   mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
		from: cfg.From,
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	m := s.mg.NewMessage(s.from, msg.Subject, msg.Text)
	if err := m.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}

	_, id, err := s.mg.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}

	slog.Info("email queued", "provider", "mailgun", "id", id)
	return nil
}

// LogSender only logs the recipient and subject. Used when no mail provider
// is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("email not sent, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

// PasswordResetMessage builds the reset mail. The token goes in the query
// string of baseURL.
func PasswordResetMessage(to string, baseURL string, token string, ttl time.Duration) (Message, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Message{}, fmt.Errorf("parse reset url: %w", err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	text := fmt.Sprintf(
		"A password reset was requested for your Site Inspector account.\n\n"+
			"Open this link to choose a new password:\n%s\n\n"+
			"The link expires in %s and can be used once. If you did not ask for this, ignore this email.\n",
		u.String(), ttl.Round(time.Minute))

	return Message{To: to, Subject: "Reset your Site Inspector password", Text: text}, nil
}
