package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vietddude/opsbridge/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is not configured")
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
		return err
	}

	version, err := postgres.MigrationVersion(ctx, db.DB.DB)
	if err != nil {
		return err
	}
	slog.Info("Database is up to date", "version", version)
	return nil
}
