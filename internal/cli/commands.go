package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mountpass/internal/passes/handler"
	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
)

type migrateResult struct {
	Applied []string `json:"applied"`
}

type statusResult struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	CanBeEdited bool   `json:"can_be_edited"`
}

func newMigrateCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, open, func(ctx context.Context, b Backend) error {
				applied, err := b.Migrate(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "migration failed", err)
				}
				if applied == nil {
					applied = []string{}
				}
				return write(cmd.OutOrStdout(), opts.Format, migrateResult{Applied: applied})
			})
		},
	}
}

func newShowCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a pass as the API returns it",
		Example: `  passctl show 42
  passctl show 42 --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePassID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, open, func(ctx context.Context, b Backend) error {
				pass, err := b.Get(ctx, id)
				if err != nil {
					return passError(id, err)
				}
				return write(cmd.OutOrStdout(), opts.Format, handler.NewPassResponse(pass, b))
			})
		},
	}
}

func newSetStatusCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a pass to new, pending, accepted or rejected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePassID(args[0])
			if err != nil {
				return err
			}
			status, err := models.ParseStatus(args[1])
			if err != nil {
				return WrapExitError(ExitFailure, "invalid status", err)
			}
			return withBackend(cmd, opts, open, func(ctx context.Context, b Backend) error {
				pass, err := b.SetStatus(ctx, id, status)
				if err != nil {
					return passError(id, err)
				}
				return write(cmd.OutOrStdout(), opts.Format, statusResult{
					ID:          pass.ID,
					Status:      string(pass.Status),
					CanBeEdited: pass.CanBeEdited(),
				})
			})
		},
	}
}

func parsePassID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid pass id %q", raw), nil)
	}
	return id, nil
}

func passError(id int64, err error) error {
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return WrapExitError(ExitFailure, fmt.Sprintf("pass %d not found", id), nil)
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("pass %d", id), err)
}
