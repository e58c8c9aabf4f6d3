package notify

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// EmailOptions configures the SMTP sender.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
}

// EmailSender delivers multipart (plain + HTML) mail over SMTP with
// STARTTLS.
type EmailSender struct {
	opts   EmailOptions
	logger zerolog.Logger

	// send is swapped in tests to avoid a live SMTP connection.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender builds a sender. Credentials are checked at send time
// so an unconfigured sender can still be constructed.
func NewEmailSender(opts EmailOptions, logger zerolog.Logger) *EmailSender {
	return &EmailSender{
		opts:   opts,
		logger: logger.With().Str("component", "email").Logger(),
		send:   smtp.SendMail,
	}
}

// Configured reports whether SMTP credentials were provided.
func (e *EmailSender) Configured() bool {
	return e.opts.Username != "" && e.opts.Password != ""
}

// Send delivers one message. htmlBody may be empty, in which case only
// the plain part is attached.
func (e *EmailSender) Send(to, subject, body, htmlBody string) error {
	if !e.Configured() {
		return fmt.Errorf("email credentials not configured")
	}

	msg := buildMIME(e.opts.Username, to, subject, body, htmlBody)
	addr := fmt.Sprintf("%s:%d", e.opts.Host, e.opts.Port)
	auth := smtp.PlainAuth("", e.opts.Username, e.opts.Password, e.opts.Host)

	if err := e.send(addr, auth, e.opts.Username, []string{to}, msg); err != nil {
		e.logger.Warn().Err(err).Str("to", to).Msg("email delivery failed")
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	e.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

const mimeBoundary = "sheetsync-mime-boundary"

// buildMIME renders a multipart/alternative message. Subjects and
// bodies carry Korean text, so everything is base64 encoded.
func buildMIME(from, to, subject, body, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: =?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?=\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if htmlBody == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(body)))
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	b.WriteString("Content-Type: multipart/alternative; boundary=" + mimeBoundary + "\r\n\r\n")
	for _, part := range []struct{ ctype, content string }{
		{"text/plain", body},
		{"text/html", htmlBody},
	} {
		b.WriteString("--" + mimeBoundary + "\r\n")
		b.WriteString("Content-Type: " + part.ctype + "; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(part.content)))
		b.WriteString("\r\n")
	}
	b.WriteString("--" + mimeBoundary + "--\r\n")
	return []byte(b.String())
}
