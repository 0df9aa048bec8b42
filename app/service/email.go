package service

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/microlearn/auth-service/config"
)

// Email is one outbound message. HTML is the primary body; Text is the
// plain-text alternative.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Mailer delivers outbound email. Implementations must be safe for
// concurrent use; auth flows call Send from fire-and-forget tasks and only
// ever log its errors.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer writes messages to the log instead of delivering them. It is
// the default when no SMTP credentials are configured, which keeps local
// development working without a mail provider.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, email Email) error {
	logrus.WithFields(logrus.Fields{
		"to":      email.To,
		"subject": email.Subject,
		"body":    email.Text,
	}).Info("email (log transport)")
	return nil
}

type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		host:     cfg.SMTPHost,
		username: cfg.SMTPUser,
		password: cfg.SMTPPass,
		from:     cfg.From,
	}
}

func (m *SMTPMailer) Send(_ context.Context, email Email) error {
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := buildMIMEMessage(m.from, email)
	if err := smtp.SendMail(m.addr, auth, m.from, []string{email.To}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.To, err)
	}
	return nil
}

// buildMIMEMessage assembles a multipart/alternative message with text and
// HTML parts.
func buildMIMEMessage(from string, email Email) []byte {
	const boundary = "microlearn-alt"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(email.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
