package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is the account email facade used by the auth service.
type Notifier struct {
	mailer *Mailer
	outbox Outbox
	log    zerolog.Logger
}

func NewNotifier(mailer *Mailer, outbox Outbox, log zerolog.Logger) *Notifier {
	return &Notifier{mailer: mailer, outbox: outbox, log: log}
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, firstName, resetURL string) error {
	return n.mailer.Deliver(ctx, Message{
		Kind:      KindPasswordReset,
		To:        to,
		FirstName: firstName,
		ResetURL:  resetURL,
	})
}

func (n *Notifier) NotifyWelcome(ctx context.Context, to, firstName string) {
	n.enqueue(ctx, Message{Kind: KindWelcome, To: to, FirstName: firstName})
}

func (n *Notifier) NotifyPasswordChanged(ctx context.Context, to, firstName string) {
	n.enqueue(ctx, Message{Kind: KindPasswordChanged, To: to, FirstName: firstName})
}

func (n *Notifier) enqueue(ctx context.Context, msg Message) {
	if err := n.outbox.Enqueue(ctx, msg); err != nil {
		n.log.Error().Err(err).Str("kind", string(msg.Kind)).Msg("enqueue mail")
	}
}
