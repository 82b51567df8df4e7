package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/comment-moderation-api/internal/app"
	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/service"
	"github.com/comment-moderation-api/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CloseFunc releases whatever an Opener acquired
type CloseFunc func(context.Context) error

// Opener builds the services a command runs against
type Opener func(ctx context.Context, log zerolog.Logger) (*service.Services, CloseFunc, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string // "json" | "text"
	LogLevel string
	open     Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the modctl root command backed by the configured store
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOpener(openFromEnv)
}

// NewRootCommandWithOpener creates the root command with a custom service opener
func NewRootCommandWithOpener(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "modctl",
		Short: "modctl - comment moderation admin tool",
		Long:  "Operator commands for comment moderation: schema migrations, moderation actions and comment_count repair.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewApproveCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewSetStatusCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewRecountCommand(opts))

	return cmd
}

// logger writes to stderr so --format json output stays parseable
func (o *RootOptions) logger() zerolog.Logger {
	return logger.NewWithWriter(os.Stderr, o.LogLevel, "pretty")
}

// openFromEnv loads configuration from the environment and wires the full application
func openFromEnv(ctx context.Context, log zerolog.Logger) (*service.Services, CloseFunc, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return application.Services, application.Close, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
