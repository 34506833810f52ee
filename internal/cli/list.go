package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/larder/internal/queryir"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Sort   string
	Search string
}

// listResult is the JSON payload of list.
type listResult struct {
	Loading         bool         `json:"loading"`
	PlaceholderRows int          `json:"placeholder_rows,omitempty"`
	View            string       `json:"view"`
	Recipes         []recipeView `json:"recipes"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recipes",
		Long: `List stored recipes sorted by name or by last update, optionally
filtered by a case-insensitive search over name, description and
instructions.

Example:
  larder list
  larder list --sort last_updated
  larder list --search pie`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort order: name | last_updated (default from config)")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "case-insensitive search text")

	return cmd
}

// view builds the query view from flags and config.
func (o *ListOptions) view() (queryir.View, error) {
	key := o.Sort
	if key == "" {
		key = o.Config.View.Sort
	}
	sort, err := queryir.ParseSort(key)
	if err != nil {
		return queryir.View{}, &ExitError{Code: ExitCommandError, ErrorCode: ErrCodeInvalidFlag, Message: "invalid --sort", Err: err}
	}
	return queryir.View{Sort: sort, Filter: queryir.Search(o.Search)}, nil
}

func runList(ctx context.Context, opts *ListOptions, cmd *cobra.Command) error {
	view, err := opts.view()
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	synced, err := st.HasSynced(ctx)
	if err != nil {
		return readExitError(err)
	}

	f := opts.formatter(cmd)
	if !synced {
		n := opts.Config.View.PlaceholderRows
		return f.Render(listResult{Loading: true, PlaceholderRows: n, View: view.String(), Recipes: []recipeView{}}, func(w io.Writer) error {
			writePlaceholders(w, n)
			_, err := fmt.Fprintln(w, "Run `larder sync` to fetch recipes.")
			return err
		})
	}

	rows, err := st.Query(ctx, view)
	if err != nil {
		return readExitError(err)
	}

	now := opts.now()
	result := listResult{View: view.String(), Recipes: make([]recipeView, len(rows))}
	for i, r := range rows {
		result.Recipes[i] = toView(r, now)
	}

	return f.Render(result, func(w io.Writer) error {
		return writeTable(w, rows, opts.Search, now)
	})
}
