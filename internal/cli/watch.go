package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/larder/internal/engine"
	"github.com/roach88/larder/internal/livequery"
	"github.com/roach88/larder/internal/recipe"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	ListOptions
	Interval time.Duration
	MaxSyncs int
}

// updateView is the JSON payload of one watch update.
type updateView struct {
	Seq             int64             `json:"seq"`
	Loading         bool              `json:"loading"`
	PlaceholderRows int               `json:"placeholder_rows,omitempty"`
	Diff            livequery.RowDiff `json:"diff"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{ListOptions: ListOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically and print row changes",
		Long: `Keep the local database in sync and print how a sorted, filtered view
changes after every commit.

A sync runs on start and then every interval. Send SIGHUP to request an
immediate sync. Output lines:
  + name (id)          row inserted
  - id                 row removed
  ~ name (id)          row content updated
  > name (id) 3 -> 0   row moved

Example:
  larder watch --search soup
  larder watch --interval 30s --max-syncs 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort order: name | last_updated (default from config)")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "case-insensitive search text")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "sync interval (default from config)")
	cmd.Flags().IntVar(&opts.MaxSyncs, "max-syncs", 0, "exit after this many sync cycles (0 = run until interrupted)")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, cmd *cobra.Command) error {
	view, err := opts.view()
	if err != nil {
		return err
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = opts.Config.Sync.Interval
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	f := opts.formatter(cmd)
	printer := &updatePrinter{f: f, search: opts.Search, placeholders: opts.Config.View.PlaceholderRows}

	q, err := livequery.New(st,
		livequery.WithView(view),
		livequery.WithPlaceholderRows(opts.Config.View.PlaceholderRows),
	)
	if err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: ErrCodeInvalidFlag, Message: "invalid view", Err: err}
	}
	q.Subscribe(printer)

	hub := livequery.NewHub(st)
	hub.Register(q)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		cycles   int
		failures int
	)
	sched := engine.NewScheduler(opts.newEngine(st),
		engine.WithInterval(interval),
		engine.WithRetryConfig(opts.retryConfig()),
		engine.WithTriggerLimit(opts.Config.Sync.TriggerEvery, 1),
		engine.WithResultHandler(func(r engine.Result) {
			if r.Err != nil {
				slog.Warn("sync failed", "reason", r.Reason, "error", engine.UserMessage(r.Err))
			}

			mu.Lock()
			cycles++
			if r.Err != nil {
				failures++
			}
			done := opts.MaxSyncs > 0 && cycles >= opts.MaxSyncs
			mu.Unlock()

			if done {
				// Flush the final commit through the view before stopping.
				if err := hub.Evaluate(ctx); err != nil {
					slog.Debug("final evaluation failed", "error", err)
				}
				cancel()
			}
		}),
	)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	ready := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx, ready)
	})
	g.Go(func() error {
		// The hub must be subscribed before the first commit.
		select {
		case <-ready:
		case <-gctx.Done():
			return gctx.Err()
		}
		return sched.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				slog.Info("sync requested", "accepted", sched.Trigger())
			case sig := <-sigs:
				slog.Info("received signal, shutting down", "signal", sig)
				cancel()
				return nil
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch failed", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if opts.MaxSyncs > 0 && failures == cycles && cycles > 0 {
		return &ExitError{Code: ExitFailure, ErrorCode: ErrCodeGeneric, Message: "every sync cycle failed"}
	}
	return nil
}

// updatePrinter renders LiveQuery updates.
type updatePrinter struct {
	f            *OutputFormatter
	search       string
	placeholders int

	mu         sync.Mutex
	sawLoading bool
}

// Apply implements livequery.Subscriber.
func (p *updatePrinter) Apply(u livequery.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.Loading {
		if p.sawLoading {
			return
		}
		p.sawLoading = true
	} else if u.Diff.IsEmpty() {
		return
	}

	data := updateView{Seq: u.Seq, Loading: u.Loading, Diff: u.Diff}
	if u.Loading {
		data.PlaceholderRows = p.placeholders
	}
	_ = p.f.Render(data, func(w io.Writer) error {
		return p.writeText(w, u)
	})
}

func (p *updatePrinter) writeText(w io.Writer, u livequery.Update) error {
	if u.Loading {
		writePlaceholders(w, p.placeholders)
		return nil
	}

	byID := make(map[string]recipe.Recipe, len(u.Rows))
	for _, r := range u.Rows {
		byID[r.ID] = r
	}
	label := func(id string) string {
		return fmt.Sprintf("%s (%s)", emphasize(displayName(byID[id].Name), p.search), id)
	}

	fmt.Fprintf(w, "commit %d: %d rows\n", u.Seq, len(u.Rows))
	for _, id := range u.Diff.Removed {
		fmt.Fprintf(w, "  - %s\n", id)
	}
	for _, id := range u.Diff.Inserted {
		fmt.Fprintf(w, "  + %s\n", label(id))
	}
	for _, id := range u.Diff.Updated {
		fmt.Fprintf(w, "  ~ %s\n", label(id))
	}
	for _, m := range u.Diff.Moved {
		fmt.Fprintf(w, "  > %s %d -> %d\n", label(m.ID), m.From, m.To)
	}
	return nil
}
