package main

import (
	"github.com/spf13/cobra"

	"family-fund-backend/internal/database"
	"family-fund-backend/internal/logger"
)

var (
	flagMigrateMode  string
	flagMigrateSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateUpCmd.Flags().StringVar(&flagMigrateMode, "mode", "", "sql or auto (default MIGRATION_MODE)")
	migrateDownCmd.Flags().IntVar(&flagMigrateSteps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateUp(_ *cobra.Command, _ []string) error {
	cfg, db, log, err := setup()
	if err != nil {
		return err
	}
	mode := cfg.MigrationMode
	if flagMigrateMode != "" {
		mode = flagMigrateMode
	}
	return database.Up(db, mode, logger.Component(log, "migrate"))
}

func runMigrateDown(_ *cobra.Command, _ []string) error {
	_, db, log, err := setup()
	if err != nil {
		return err
	}
	if err := database.Down(db, flagMigrateSteps); err != nil {
		return err
	}
	log.Info().Int("steps", flagMigrateSteps).Msg("Migrations rolled back")
	return nil
}
