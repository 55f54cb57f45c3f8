package main

import (
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create schemas, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StorageDriverPostgres {
				return fmt.Errorf("migrate requires STORAGE_DRIVER=%s, got %q", config.StorageDriverPostgres, cfg.Storage.Driver)
			}

			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(cfg.Database, log)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			return database.Migrate(db, log)
		},
	}
}
