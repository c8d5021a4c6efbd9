package main

import (
	"fmt"
	"os"

	"github.com/abduss/filevault/internal/config"
	"github.com/abduss/filevault/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &application{}

	root := &cobra.Command{
		Use:           "filevault",
		Short:         "File upload and access API backed by PostgreSQL and S3-compatible storage",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.log != nil {
				_ = app.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app)
		},
	}
	root.PersistentFlags().StringVar(&app.envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	root.AddCommand(newServeCommand(app), newMigrateCommand(app), newSweepCommand(app))
	return root
}

// application carries state shared by every subcommand.
type application struct {
	envFile string
	cfg     config.Config
	log     *zap.Logger
}

func (a *application) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log.With(zap.String("service", "filevault"), zap.String("version", version))
	return nil
}
