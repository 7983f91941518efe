package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"family-fund-backend/internal/config"
	"family-fund-backend/internal/logger"
)

var version = "dev"

var (
	flagLogLevel string
	flagEnvFile  string
)

var rootCmd = &cobra.Command{
	Use:           "fundctl",
	Short:         "Family fund operator CLI",
	Long:          "Inspect the fund pool, run schema migrations and remove users from the family fund database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Env file to load before reading config")
}

// setup loads config, builds the logger and opens the database shared by
// every subcommand.
func setup() (*config.Config, *gorm.DB, zerolog.Logger, error) {
	_ = godotenv.Load(flagEnvFile)

	cfg := config.Load()
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "fundctl",
		Version:     version,
		Output:      zerolog.ConsoleWriter{Out: os.Stderr},
	})

	if err := cfg.Validate(); err != nil {
		return nil, nil, log, err
	}
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, log, err
	}
	return cfg, db, log, nil
}
