package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"family-fund-backend/internal/config"
	"family-fund-backend/internal/database"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/logger"
	"family-fund-backend/internal/middleware"
	"family-fund-backend/internal/notify"
	"family-fund-backend/internal/routes"
)

var version = "dev"

func main() {
	// Load .env
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "family-fund-server",
		Version:     version,
	})
	if envErr != nil {
		log.Debug().Msg("No .env file found, relying on system env")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Up(db, cfg.MigrationMode, logger.Component(log, "migrate")); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	notifier, closeNotifier := buildNotifier(ctx, g, cfg, db, log)
	defer closeNotifier()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(logger.Component(log, "access")))
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.HeaderUserID, middleware.HeaderUserEmail, middleware.HeaderUserName},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:       db,
		Notifier: notifier,
		Resolver: identity.NewResolver(cfg.AdminEmails),
		Log:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting family fund server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server stopped gracefully")
}

// buildNotifier publishes to the broker when one is configured and writes
// to the notifications table otherwise, or only logs with NOTIFY_SINK=log. Either way delivery runs on a
// background queue so a slow sink never holds up a request.
func buildNotifier(ctx context.Context, g *errgroup.Group, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (notify.Notifier, func()) {
	notifyLog := logger.Component(log, "notify")

	var (
		sink    notify.Notifier = notify.NewStore(db)
		closeFn                 = func() {}
	)
	if cfg.AMQPURL != "" {
		client, err := notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, notifyLog)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize AMQP client")
		}
		sink = client
		closeFn = func() {
			if err := client.Close(); err != nil {
				notifyLog.Warn().Err(err).Msg("Failed to close AMQP client")
			}
		}
		notifyLog.Info().Str("exchange", cfg.AMQPExchange).Msg("Publishing notifications to broker")
	} else if cfg.NotifySink == "log" {
		sink = notify.NewLogNotifier(notifyLog)
		notifyLog.Info().Msg("Notifications go to the log only")
	} else {
		notifyLog.Info().Msg("No AMQP_URL set, storing notifications directly")
	}

	async := notify.NewAsync(sink, cfg.NotifyBuffer, notifyLog)
	g.Go(func() error {
		err := async.Run(ctx)
		if dropped := async.Dropped(); dropped > 0 {
			notifyLog.Warn().Int64("dropped", dropped).Msg("Notifications dropped")
		}
		return err
	})
	return async, closeFn
}
