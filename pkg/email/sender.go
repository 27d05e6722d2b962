// Package email provides a minimal SMTP sender used for transactional
// mail (team invites, inquiry alerts, maintenance updates). Message
// bodies are rendered by the caller; this package only delivers them.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rentzentro/platform/pkg/config"
)

const dialTimeout = 10 * time.Second

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	// From is the SMTP envelope sender (MAIL FROM). This should be a raw mailbox address.
	From string
	// FromName is an optional display name used only for the message header.
	FromName string
}

// ConfigFromEnv loads SMTP settings from the environment. An empty host
// leaves the sender unconfigured and callers are expected to skip sends.
func ConfigFromEnv() Config {
	return Config{
		Host:     config.GetEnv("SMTP_HOST", ""),
		Port:     config.GetEnv("SMTP_PORT", "587"),
		User:     config.GetEnv("SMTP_USER", ""),
		Password: config.GetEnv("SMTP_PASSWORD", ""),
		From:     config.GetEnv("FROM_EMAIL", "noreply@rentzentro.com"),
		FromName: config.GetEnv("FROM_NAME", "RentZentro"),
	}
}

type Sender struct {
	config Config
	auth   smtp.Auth
}

func NewSender(cfg Config) *Sender {
	s := &Sender{config: cfg}
	if cfg.User != "" && cfg.Password != "" {
		s.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return s
}

// Enabled reports whether the sender has enough configuration to attempt
// delivery.
func (s *Sender) Enabled() bool {
	return s.config.Host != "" && s.config.From != ""
}

// SendMail delivers a single HTML message. STARTTLS and AUTH are used
// when the server advertises them; plain submission otherwise, which is
// what local relays speak.
func (s *Sender) SendMail(ctx context.Context, to, subject, htmlBody string) error {
	to = stripCRLF(to)
	msg := s.buildMessage(to, subject, htmlBody)

	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(s.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return client.Quit()
}

func (s *Sender) buildMessage(to, subject, htmlBody string) []byte {
	from := s.config.From
	if name := strings.TrimSpace(s.config.FromName); name != "" {
		from = fmt.Sprintf("%s <%s>", name, s.config.From)
	}

	var b strings.Builder
	header := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(stripCRLF(value))
		b.WriteString("\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", subject)
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/html; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	return []byte(b.String())
}

// stripCRLF removes line breaks so caller-supplied values cannot inject
// extra headers.
func stripCRLF(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
