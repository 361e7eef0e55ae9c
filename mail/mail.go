// Package mail submits email over an authenticated SMTP-over-TLS session.
// One message per call, no retry; transient failures propagate to the caller.
package mail

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/rs/zerolog"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// Config holds SMTP relay settings.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// SMTP is the production Sender.
type SMTP struct {
	config Config
	log    zerolog.Logger
}

// NewSMTP returns a Sender over the given relay.
func NewSMTP(config Config, log zerolog.Logger) *SMTP {
	return &SMTP{config: config, log: log}
}

// Send delivers an HTML email to a single recipient. With no credentials
// configured the message is logged instead of sent, for local development.
func (s *SMTP) Send(to, subject, htmlBody string) error {
	if s.config.Username == "" || s.config.Password == "" {
		s.log.Warn().
			Str("to", to).
			Str("subject", subject).
			Msg("SMTP credentials not configured - email not sent")
		return nil
	}

	headers := fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n",
		s.config.FromName, s.config.FromEmail, to, subject,
	)
	message := headers + "\r\n" + htmlBody

	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write email message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return nil
}
