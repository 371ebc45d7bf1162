package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/repository"
)

type Purger interface {
	PurgeExpired(ctx context.Context) (repository.PurgeResult, error)
}

// Scheduler runs periodic maintenance inside the API process.
type Scheduler struct {
	cron     *cron.Cron
	purger   Purger
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler takes a six-field (seconds first) cron expression.
func NewScheduler(purger Purger, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		purger:   purger,
		schedule: schedule,
		timeout:  time.Minute,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.log.Info().Msg("token purge disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.purge); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running purge to finish, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.PurgeNow(ctx)
}

// PurgeNow deletes expired refresh and reset tokens once.
func (s *Scheduler) PurgeNow(ctx context.Context) (repository.PurgeResult, error) {
	result, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("token purge failed")
		return result, err
	}
	if result.RefreshTokens > 0 || result.ResetTokens > 0 {
		s.log.Info().
			Int64("refresh_tokens", result.RefreshTokens).
			Int64("reset_tokens", result.ResetTokens).
			Msg("expired tokens purged")
	}
	return result, nil
}
