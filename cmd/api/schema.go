package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/event-inbox-service/internal/config"
	"github.com/PratikDhanave/event-inbox-service/internal/logging"
	"github.com/PratikDhanave/event-inbox-service/internal/store"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the storage tables and indexes, then exit",
	Long: `schema provisions the configured store: the events table and its
(status, created_at) index for postgres, the table and GSI for dynamodb.
It is safe to run repeatedly. Drivers without a schema do nothing.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)

		storeCfg := cfg.Store
		storeCfg.EnsureSchema = false
		backend, err := store.Open(cmd.Context(), storeCfg, logger)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := store.EnsureSchema(cmd.Context(), backend); err != nil {
			return err
		}
		logger.Info("schema ready", slog.String("driver", cfg.Store.Driver))
		return nil
	},
}
