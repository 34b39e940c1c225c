// Package email delivers rendered alerts over SMTP.
package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"MarketMonitor/internal/config"
	"MarketMonitor/internal/ports"
)

// Notifier sends alert mail through the configured SMTP relay.
type Notifier struct {
	cfg config.SMTPConfig
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier captures the SMTP configuration.
func NewNotifier(cfg config.SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

// Send delivers one message. Auth and transport failures both surface as a
// single delivery error; the pipeline isolates it to the current filing.
func (n *Notifier) Send(ctx context.Context, subject, body string, recipients []string) error {
	if n.cfg.Host == "" || n.cfg.FromAddr == "" {
		return fmt.Errorf("smtp notifier misconfigured")
	}
	if len(recipients) == 0 {
		recipients = n.cfg.ToAddrs
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.FromAddr); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
