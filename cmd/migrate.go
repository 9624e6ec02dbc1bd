package cmd

import (
	"fmt"
	"log/slog"

	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err := migrateSchema(db); err != nil {
			return err
		}
		logger.L().Info("database migration completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// bootDB loads configuration, sets up logging and opens the database
func bootDB() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.GoEnv)

	if err := config.ConnectDatabase(cfg); err != nil {
		return nil, err
	}
	return config.GetDB(), nil
}

// legacyUniqueIndexes covered soft-deleted rows too and were replaced by
// partial indexes over live rows.
var legacyUniqueIndexes = []struct {
	model interface{}
	name  string
}{
	{&models.User{}, "idx_users_email"},
	{&models.Promotion{}, "idx_promotions_code"},
}

func migrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	migrator := db.Migrator()
	for _, legacy := range legacyUniqueIndexes {
		if !migrator.HasIndex(legacy.model, legacy.name) {
			continue
		}
		if err := migrator.DropIndex(legacy.model, legacy.name); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", legacy.name, err)
		}
		logger.L().Info("dropped legacy unique index", slog.String("index", legacy.name))
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
