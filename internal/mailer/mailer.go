// Package mailer is the thin outbound-mail transport. The digest service
// only depends on the Mailer interface; tests substitute a fake.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// Mailer sends one message with a plain-text body and an HTML alternative.
type Mailer interface {
	Send(ctx context.Context, to, subject, plainBody, htmlBody string) error
}

// SMTP sends mail through an authenticated STARTTLS SMTP relay.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(host, port, username, password, from string) *SMTP {
	if from == "" {
		from = username
	}
	return &SMTP{Host: host, Port: port, Username: username, Password: password, From: from}
}

// Enabled reports whether credentials are configured. A disabled mailer
// never crashes the process; callers skip sending instead.
func (m *SMTP) Enabled() bool {
	return m.Username != "" && m.Password != ""
}

// Send delivers the message, or fails fast when credentials are absent.
func (m *SMTP) Send(ctx context.Context, to, subject, plainBody, htmlBody string) error {
	if !m.Enabled() {
		return fmt.Errorf("mail credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(m.From, to, subject, plainBody, htmlBody)
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	addr := m.Host + ":" + m.Port
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

const boundary = "attendance-digest-alt"

// buildMessage assembles a multipart/alternative MIME message carrying the
// plain-text body first and the HTML rendering second, so clients prefer
// the richer part.
func buildMessage(from, to, subject, plainBody, htmlBody string) []byte {
	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=" + boundary + "\r\n" +
		"\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		plainBody + "\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody + "\r\n" +
		"--" + boundary + "--\r\n"
	return []byte(msg)
}
