package commands

import (
	"fmt"

	gormrepo "npcgateway/internal/adapter/repo/gorm"
	"npcgateway/internal/config"
	"npcgateway/migrations"

	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema for the history store",
		Long: `Apply the embedded SQL migrations to the postgres database named by store.dsn.
Other store drivers need no migration: sqlite creates its table on open,
mongo and memory are schemaless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Store.Driver != config.StorePostgres {
				fmt.Fprintf(out, "store driver %q has no migrations\n", cfg.Store.Driver)
				return nil
			}

			db, err := gormrepo.OpenPostgres(cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			applied, err := gormrepo.ApplyMigrations(cmd.Context(), db, migrations.FS)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			return nil
		},
	}
}
