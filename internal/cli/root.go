// Package cli implements passctl, the operator tool for the pass database.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"mountpass/internal/passes/models"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{FormatJSON, FormatYAML}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Format      string
}

// Backend is the pass database as passctl sees it.
type Backend interface {
	Get(ctx context.Context, id int64) (*models.Pass, error)
	SetStatus(ctx context.Context, id int64, status models.Status) (*models.Pass, error)
	Migrate(ctx context.Context) ([]string, error)
	URL(path string) string
	Close() error
}

// Opener connects a Backend using the global flags.
type Opener func(ctx context.Context, opts *RootOptions) (Backend, error)

// NewRootCommand creates the passctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "passctl",
		Short: "Operate the mountain pass database",
		Long:  "passctl applies migrations, inspects submitted passes and moderates them without going through the HTTP API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "Postgres URL (defaults to MOUNTPASS_DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatJSON, "output format (json|yaml)")

	cmd.AddCommand(newMigrateCommand(opts, open))
	cmd.AddCommand(newShowCommand(opts, open))
	cmd.AddCommand(newSetStatusCommand(opts, open))

	return cmd
}

func withBackend(cmd *cobra.Command, opts *RootOptions, open Opener, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := open(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer b.Close()
	return fn(ctx, b)
}
