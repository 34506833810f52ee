package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// statsResult is the JSON payload of stats.
type statsResult struct {
	Database     string     `json:"database"`
	Recipes      int        `json:"recipes"`
	Commits      int        `json:"commits"`
	LastSeq      int64      `json:"last_seq"`
	LastCommitAt *time.Time `json:"last_commit_at,omitempty"`
	LastSync     string     `json:"last_sync,omitempty"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runStats(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	s, err := st.Stats(ctx)
	if err != nil {
		return readExitError(err)
	}

	res := statsResult{
		Database: opts.Config.Store.Path,
		Recipes:  s.Recipes,
		Commits:  s.Commits,
		LastSeq:  s.LastSeq,
	}
	if !s.LastCommitAt.IsZero() {
		t := s.LastCommitAt
		res.LastCommitAt = &t
		res.LastSync = relativeTime(t, opts.now())
	}

	return opts.formatter(cmd).Render(res, func(w io.Writer) error {
		fmt.Fprintf(w, "database:  %s\n", res.Database)
		fmt.Fprintf(w, "recipes:   %d\n", res.Recipes)
		fmt.Fprintf(w, "commits:   %d\n", res.Commits)
		if res.LastSync == "" {
			_, err := fmt.Fprintf(w, "last sync: never\n")
			return err
		}
		_, err := fmt.Fprintf(w, "last sync: %s\n", res.LastSync)
		return err
	})
}
