package mail

import (
	"context"
	"fmt"
)

// Mailer renders a Message and sends it.
type Mailer struct {
	templates *Templates
	sender    Sender
}

func NewMailer(templates *Templates, sender Sender) *Mailer {
	return &Mailer{templates: templates, sender: sender}
}

func (m *Mailer) Deliver(ctx context.Context, msg Message) error {
	subject, body, err := m.templates.Render(msg)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg.To, subject, body); err != nil {
		return fmt.Errorf("deliver %s: %w", msg.Kind, err)
	}
	return nil
}
