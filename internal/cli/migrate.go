package cli

import (
	"context"
	"fmt"

	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command with up and down subcommands.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (defaults to MIGRATIONS_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:           "up",
		Short:         "Apply all pending migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, opts, path, true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "down",
		Short:         "Roll back the most recent migration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, opts, path, false)
		},
	})

	return cmd
}

func migrate(cmd *cobra.Command, opts *RootOptions, path string, up bool) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if path == "" {
		path = cfg.Database.MigrationsPath
	}
	log := opts.logger()
	ctx := context.Background()

	if cfg.Database.Driver == config.DriverMongo {
		if !up {
			return NewExitError(ExitCommandError, "mongo backend has no down migrations")
		}
		db, err := database.NewMongo(&cfg.Database, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "connect", err)
		}
		defer db.Shutdown(ctx)
		if err := db.EnsureIndexes(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
		return nil
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	defer db.Shutdown(ctx)

	if up {
		err = db.RunMigrations(path)
	} else {
		err = db.MigrateDown(path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", cmd.Name())
	return nil
}
