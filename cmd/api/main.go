package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/MaxtDesign/MaxtPM/internal/cache"
	"github.com/MaxtDesign/MaxtPM/internal/config"
	"github.com/MaxtDesign/MaxtPM/internal/database"
	"github.com/MaxtDesign/MaxtPM/internal/handlers"
	"github.com/MaxtDesign/MaxtPM/internal/jobs"
	"github.com/MaxtDesign/MaxtPM/internal/log"
	"github.com/MaxtDesign/MaxtPM/internal/mail"
	"github.com/MaxtDesign/MaxtPM/internal/repository"
	"github.com/MaxtDesign/MaxtPM/internal/server"
	"github.com/MaxtDesign/MaxtPM/internal/storage"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	if *migrate || *migrateOnly || cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		if *migrateOnly {
			return
		}
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis not configured; using in-process rate limits and direct mail delivery")
	}

	deps := handlers.Deps{
		Log:    logger,
		Config: cfg,
		Store:  repository.NewPostgres(dbPool),
		Cache:  redisClient,
	}

	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure logo bucket failed")
		}
		deps.Logos = objectStore
	}

	notifier, err := newNotifier(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init mail")
	}
	deps.Notifier = notifier

	handlerSet := handlers.NewHandlerSet(deps)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(handlerSet.Sessions(), cfg.Jobs.PurgeSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

// newNotifier queues mail on the Redis stream for the worker when Redis is
// available and delivers in-process otherwise.
func newNotifier(cfg *config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) (*mail.Notifier, error) {
	templates, err := mail.LoadTemplates(cfg.App.Name, cfg.Security.ResetTokenTTL)
	if err != nil {
		return nil, err
	}
	sender, err := mail.NewSMTPSender(cfg.SMTP)
	if err != nil {
		return nil, err
	}
	mailer := mail.NewMailer(templates, sender)

	var outbox mail.Outbox
	if redisClient != nil {
		outbox = mail.NewStreamOutbox(redisClient, cfg.Mail.Stream)
	} else {
		outbox = mail.NewDirectOutbox(mailer, cfg.Mail.SendTimeout, logger)
	}
	return mail.NewNotifier(mailer, outbox, logger), nil
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	scheduler.Stop(shutdownCtx)

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
