package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the documents table and indexes in DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, sync, err := setup()
		if err != nil {
			return err
		}
		defer sync()
		if cfg.Database.URL == "" {
			return errors.New("migrate: DATABASE_URL is not set")
		}
		store, db, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrate(cmd.Context(), store, logger); err != nil {
			return err
		}
		logger.Info("migration complete")
		return nil
	},
}
