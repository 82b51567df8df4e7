package cli

import (
	"context"
	"fmt"

	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/service"
	"github.com/comment-moderation-api/internal/validation"
	"github.com/spf13/cobra"
)

type moderationFunc func(ctx context.Context, svc service.ModerationService, id string) (*models.ModerationResult, error)

func newModerationCommand(opts *RootOptions, use, short string, run moderationFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <comment-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, opts, func(ctx context.Context, services *service.Services) error {
				result, err := run(ctx, services.Moderation, args[0])
				if err != nil {
					return err
				}
				return newFormatter(opts, cmd).moderation(result)
			})
		},
	}
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(opts *RootOptions) *cobra.Command {
	return newModerationCommand(opts, "approve", "Approve a comment",
		func(ctx context.Context, svc service.ModerationService, id string) (*models.ModerationResult, error) {
			return svc.Approve(ctx, id)
		})
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(opts *RootOptions) *cobra.Command {
	return newModerationCommand(opts, "reject", "Reject a comment",
		func(ctx context.Context, svc service.ModerationService, id string) (*models.ModerationResult, error) {
			return svc.Reject(ctx, id)
		})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return newModerationCommand(opts, "delete", "Delete a comment",
		func(ctx context.Context, svc service.ModerationService, id string) (*models.ModerationResult, error) {
			return svc.Delete(ctx, id)
		})
}

// NewSetStatusCommand creates the set-status command.
func NewSetStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-status <comment-id> <status>",
		Short:         "Move a comment to PENDING, APPROVED or REJECTED",
		Example:       "  modctl set-status 6f1c... pending",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := validation.ParseCommentStatus(args[1])
			if err != nil {
				return err
			}
			return withServices(cmd, opts, func(ctx context.Context, services *service.Services) error {
				result, err := services.Moderation.SetStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return newFormatter(opts, cmd).moderation(result)
			})
		},
	}
}

// NewRecountCommand creates the recount command.
func NewRecountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "recount <article-id>",
		Short:         "Recompute an article's comment_count from its approved comments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, opts, func(ctx context.Context, services *service.Services) error {
				result, err := services.Moderation.Recount(ctx, args[0])
				if err != nil {
					return err
				}
				return newFormatter(opts, cmd).recount(result)
			})
		},
	}
}

func withServices(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *service.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	services, closeFn, err := opts.open(ctx, opts.logger())
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer closeFn(context.WithoutCancel(ctx))

	if err := fn(ctx, services); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}
