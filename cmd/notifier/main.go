package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"family-fund-backend/internal/config"
	"family-fund-backend/internal/logger"
	"family-fund-backend/internal/notify"
)

var version = "dev"

// The notifier drains the notification queue into the notifications table.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "family-fund-notifier",
		Version:     version,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}
	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required for the notifier")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	client, err := notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Component(log, "amqp"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AMQP client")
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := notify.NewStore(db)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(ctx, store)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	log.Info().Str("queue", cfg.AMQPQueue).Msg("Notifier started")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Notifier stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Notifier stopped")
}
