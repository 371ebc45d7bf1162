package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MaxtDesign/MaxtPM/internal/cache"
	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/log"
	"github.com/MaxtDesign/MaxtPM/internal/mail"
	"github.com/MaxtDesign/MaxtPM/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	if client == nil {
		logger.Fatal().Msg("the mail worker needs redis; set PROPEASE_REDIS_ADDR")
	}
	defer client.Close()

	templates, err := mail.LoadTemplates(cfg.App.Name, cfg.Security.ResetTokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("load mail templates")
	}
	sender, err := mail.NewSMTPSender(cfg.SMTP)
	if err != nil {
		logger.Fatal().Err(err).Msg("init smtp sender")
	}
	processor := mail.NewProcessor(mail.NewMailer(templates, sender), logger)

	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Mail.Stream,
		Group:         cfg.Mail.Group,
		Consumer:      cfg.Mail.Consumer,
		ClaimInterval: cfg.Mail.ClaimInterval,
	}, processor, logger)

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})

	logger.Info().Str("stream", cfg.Mail.Stream).Str("consumer", cfg.Mail.Consumer).Msg("mail worker started")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("mail worker stopped")
}
