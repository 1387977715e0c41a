package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email is a rendered message ready for a Sender.
type Email struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, e Email) error
}

// EmailTransport renders and sends synchronously.
type EmailTransport struct {
	sender Sender
}

func NewEmailTransport(s Sender) *EmailTransport {
	return &EmailTransport{sender: s}
}

func (t *EmailTransport) Deliver(ctx context.Context, msg Message) error {
	e, err := Render(msg)
	if err != nil {
		return err
	}
	return t.sender.Send(ctx, e)
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@decorstudio.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, e.To.Email, e.Subject, e.Text)
	return smtp.SendMail(s.addr, nil, s.from, []string{e.To.Email}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	if fromName == "" {
		fromName = "Decor Studio"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, e Email) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(e.To.Name, e.To.Email)
	html := e.HTML
	if html == "" {
		html = e.Text
	}
	resp, err := s.client.SendWithContext(ctx, mail.NewSingleEmail(from, e.Subject, to, e.Text, html))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// LogTransport only logs; used when no broker or mail relay is configured.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "notification not delivered (log mode)",
		"notification_id", msg.ID,
		"kind", msg.Kind,
		"to", msg.To.Email,
	)
	return nil
}
