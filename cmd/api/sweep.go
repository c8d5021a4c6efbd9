package main

import (
	"fmt"

	"github.com/abduss/filevault/internal/file"
	"github.com/abduss/filevault/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove abandoned uploads once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPool, err := storage.NewPostgresPool(ctx, app.cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer dbPool.Close()

			objects, err := newObjectStore(ctx, app)
			if err != nil {
				return err
			}

			service := file.NewService(file.NewRepository(dbPool), objects, app.log.Named("sweep"))
			removed, err := service.SweepPending(ctx, app.cfg.Sweep.PendingAge)
			if err != nil {
				return err
			}
			app.log.Info("sweep finished", zap.Int("removed", removed))
			return nil
		},
	}
}
