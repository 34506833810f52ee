package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/larder/internal/engine"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Retry bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the catalog and store it locally",
		Long: `Run one sync cycle: fetch every recipe from the service, validate the
response, and upsert the records into the local database in one commit.

Recipes missing from the response are kept. A rejected or malformed
response leaves the database untouched.

Example:
  larder sync
  larder sync --retry --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Retry, "retry", false, "retry transient failures (sync.retry_attempts)")

	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	eng := opts.newEngine(st)

	var out engine.Outcome
	if opts.Retry {
		out, err = engine.WithRetry(ctx, opts.retryConfig(), eng.Sync)
	} else {
		out, err = eng.Sync(ctx)
	}
	if err != nil {
		slog.Debug("sync command failed", "error", err)
		return syncExitError(err)
	}

	return opts.formatter(cmd).Render(out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Synced: %d inserted, %d updated, %d dropped (commit %d, %s)\n",
			out.Inserted, out.Updated, out.Dropped, out.Seq, out.Duration.Round(time.Millisecond))
		return err
	})
}
