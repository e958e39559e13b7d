package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type MailConfig struct {
	Host     string        `env:"MAIL_HOST"`
	Username string        `env:"MAIL_USERNAME"`
	Password string        `env:"MAIL_PASSWORD"`
	Port     int64         `env:"MAIL_PORT"`
	From     string        `env:"MAIL_FROM"`
	Timeout  time.Duration `env:"MAIL_TIMEOUT"`
}

// Mailer sends one plain-text message.
type Mailer interface {
	SendEmail(ctx context.Context, recipient, subject, body string) error
}

// NewMailer returns an SMTP mailer, or a no-op one when no host is configured.
func NewMailer(cfg MailConfig) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return NopMailer{}
	}
	return NewMailNotification(cfg)
}

type NopMailer struct{}

func (NopMailer) SendEmail(ctx context.Context, recipient, subject, body string) error { return nil }

// MailNotification sends mail over SMTP.
type MailNotification struct {
	cfg MailConfig
}

func NewMailNotification(cfg MailConfig) *MailNotification {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MailNotification{cfg: cfg}
}

// SendEmail delivers over SMTP with STARTTLS when offered. The whole exchange
// is bounded by the configured timeout and by ctx.
func (m *MailNotification) SendEmail(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("mail: rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: data: %w", err)
	}
	if _, err := w.Write(buildMessage(from, recipient, subject, body)); err != nil {
		return fmt.Errorf("mail: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: close: %w", err)
	}
	return c.Quit()
}

// SendDonationConfirmEmail tells a donor their response to an alert was accepted.
func SendDonationConfirmEmail(ctx context.Context, m Mailer, to, name, alertID, bloodGroup string) error {
	return m.SendEmail(ctx, to, DonationConfirmSubject, DonationConfirmBody(name, alertID, bloodGroup))
}

const DonationConfirmSubject = "Blood donation request confirmed"

func DonationConfirmBody(name, alertID, bloodGroup string) string {
	if name == "" {
		name = "donor"
	}
	return fmt.Sprintf("Dear %s,\n\nThank you for responding to blood request %s (%s). "+
		"The blood bank has confirmed your donation and will contact you with the appointment details.\n\nBloodLink",
		name, alertID, bloodGroup)
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
