package main

import (
	"github.com/abduss/filevault/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.Migrate(app.cfg.Postgres.MigrateURL(), app.log)
		},
	}
}
