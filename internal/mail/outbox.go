package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Outbox accepts best-effort mail. Enqueue must not block on delivery.
type Outbox interface {
	Enqueue(ctx context.Context, msg Message) error
}

// StreamOutbox appends messages to a Redis stream drained by the worker.
type StreamOutbox struct {
	client *redis.Client
	stream string
}

func NewStreamOutbox(client *redis.Client, stream string) *StreamOutbox {
	return &StreamOutbox{client: client, stream: stream}
}

func (o *StreamOutbox) Enqueue(ctx context.Context, msg Message) error {
	err := o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		Values: msg.values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", o.stream, err)
	}
	return nil
}

// DirectOutbox delivers in a goroutine of the API process. It is used when
// no Redis is configured; mail in flight is lost on shutdown.
type DirectOutbox struct {
	mailer  *Mailer
	timeout time.Duration
	log     zerolog.Logger
}

func NewDirectOutbox(mailer *Mailer, timeout time.Duration, log zerolog.Logger) *DirectOutbox {
	return &DirectOutbox{mailer: mailer, timeout: timeout, log: log}
}

func (o *DirectOutbox) Enqueue(_ context.Context, msg Message) error {
	go func() {
		// Detached from the request, which is over by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		if err := o.mailer.Deliver(ctx, msg); err != nil {
			o.log.Error().Err(err).Str("kind", string(msg.Kind)).Msg("deliver mail")
		}
	}()
	return nil
}
