// Package mail delivers one-time sign-in codes over SMTP.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/repository"
)

// SMTPMailer implements repository.Mailer on top of go-mail. The client
// carries the configured dial/send timeout, so a stalled provider cannot
// hold a sign-in request indefinitely.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

var _ repository.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.Config) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(cfg.MailTimeout),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.MailFrom}, nil
}

// SendOTP emails the one-time code to the admin.
func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject("Your sign-in code")
	msg.SetBodyString(gomail.TypeTextPlain,
		fmt.Sprintf("Your one-time sign-in code is %s. It expires in 2 minutes.", code))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}
