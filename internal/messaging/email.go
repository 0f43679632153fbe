package messaging

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// EmailSender delivers an HTML email to an address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

var _ EmailSender = (*SMTPSender)(nil)

// SMTPSender sends mail over authenticated SMTP.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender dials nothing; the connection is established per send.
func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
