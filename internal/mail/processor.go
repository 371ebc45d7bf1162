package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Processor handles outbox stream entries for the worker.
type Processor struct {
	mailer *Mailer
	log    zerolog.Logger
}

func NewProcessor(mailer *Mailer, log zerolog.Logger) *Processor {
	return &Processor{mailer: mailer, log: log}
}

// Handle returns an error only for failures worth retrying. Malformed entries
// are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, entry redis.XMessage) error {
	msg, err := messageFromValues(entry.Values)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", entry.ID).Msg("drop malformed mail entry")
		return nil
	}

	err = p.mailer.Deliver(ctx, msg)
	if errors.Is(err, ErrUnknownKind) {
		p.log.Warn().Str("message_id", entry.ID).Str("kind", string(msg.Kind)).Msg("drop unknown mail kind")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mail %s: %w", entry.ID, err)
	}
	p.log.Info().Str("message_id", entry.ID).Str("kind", string(msg.Kind)).Msg("mail delivered")
	return nil
}
