package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"watering_notification_bot/internal/infra/config"
	idb "watering_notification_bot/internal/infra/database"
	"watering_notification_bot/internal/infra/logger"
)

var cfg *config.AppConfig

func main() {
	rootCmd := &cobra.Command{
		Use:           "watering-bot",
		Short:         "Soil moisture watering reminders over Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("could not load application configuration: %w", err)
			}
			logger.Init(cfg)
			return nil
		},
	}
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newReadSensorCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func openDatabase() (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	logger.Log.Info("Database connection established")
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := idb.Migrate(cmd.Context(), db, logger.Component("migrate"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
}
