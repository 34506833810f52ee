package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recipe",
		Long: `Show every field of one stored recipe: difficulty gauge, last update,
description, instructions and image links.

Example:
  larder show 0a8b1c2d-3e4f-4a5b-8c6d-7e8f90a1b2c3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), rootOpts, cmd, args[0])
		},
	}
}

func runShow(ctx context.Context, opts *RootOptions, cmd *cobra.Command, id string) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	r, err := st.Get(ctx, id)
	if err != nil {
		return readExitError(err)
	}

	now := opts.now()
	return opts.formatter(cmd).Render(toView(r, now), func(w io.Writer) error {
		writeDetail(w, r, now)
		return nil
	})
}
