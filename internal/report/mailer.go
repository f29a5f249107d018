package report

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailConfig holds the SMTP settings
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	To       string
}

// Mailer sends reports by email
type Mailer interface {
	Send(subject, body, attachment string) error
}

// SMTPMailer delivers mail through an SMTP server
type SMTPMailer struct {
	cfg    MailConfig
	dialer *gomail.Dialer
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg MailConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send mails body with the file at attachment to the configured recipient
func (m *SMTPMailer) Send(subject, body, attachment string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Username)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if attachment != "" {
		msg.Attach(attachment)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}
