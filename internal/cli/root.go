package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/larder/internal/config"
	"github.com/roach88/larder/internal/engine"
	"github.com/roach88/larder/internal/remote"
	"github.com/roach88/larder/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	BaseURL    string
	Timeout    time.Duration

	// Config is resolved in PersistentPreRunE: file values, then flags.
	Config config.Config

	// Fetcher overrides the HTTP client (for testing).
	Fetcher remote.Fetcher

	// Now overrides the wall clock used for relative times (for testing).
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// NewRootCommand creates the root command for the larder CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "larder",
		Short: "larder - offline recipe catalog",
		Long: `Keep a local copy of a remote recipe catalog and browse it offline.

larder fetches the full catalog from the recipe service, stores it in a
local SQLite database, and serves sorted, searchable views from that copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return &ExitError{
					Code:      ExitCommandError,
					ErrorCode: ErrCodeInvalidFlag,
					Message:   fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return opts.resolveConfig(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to CUE config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "recipe service base URL (overrides config)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "fetch timeout (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Execute runs the root command and renders a failure in the selected
// format. It returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	out := stderr
	if opts.Format == FormatJSON {
		out = stdout
	}
	f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// setupLogging installs the slog text handler on w.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// resolveConfig loads the config file and applies flag overrides. An
// explicit --config must exist; the default path may be absent.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) error {
	load := config.Load
	if cmd.Flags().Changed("config") {
		load = config.LoadFile
	}
	cfg, err := load(o.ConfigPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: ErrCodeConfig, Message: "failed to load config", Err: err}
	}

	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	if o.BaseURL != "" {
		cfg.Remote.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		cfg.Remote.Timeout = o.Timeout
	}
	o.Config = cfg

	slog.Debug("config resolved",
		"config", o.ConfigPath,
		"db", cfg.Store.Path,
		"base_url", cfg.Remote.BaseURL,
		"timeout", cfg.Remote.Timeout)
	return nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.Store.Path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrorCode: ErrCodeStoreOpen, Message: "failed to open database", Err: err}
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// fetcher returns the override or an HTTP client for the configured service.
func (o *RootOptions) fetcher() remote.Fetcher {
	if o.Fetcher != nil {
		return o.Fetcher
	}
	return remote.NewClient(remote.Config{
		BaseURL:     o.Config.Remote.BaseURL,
		RecipesPath: o.Config.Remote.Path,
		Timeout:     o.Config.Remote.Timeout,
	})
}

// newEngine wires an engine to st.
func (o *RootOptions) newEngine(st *store.Store) *engine.Engine {
	opts := []engine.EngineOption{engine.WithTimeout(o.Config.Remote.Timeout)}
	if o.Config.Sync.RejectConcurrent {
		opts = append(opts, engine.WithRejectConcurrent())
	}
	return engine.New(st, o.fetcher(), opts...)
}

// retryConfig derives the retry policy from config.
func (o *RootOptions) retryConfig() engine.RetryConfig {
	cfg := engine.DefaultRetryConfig()
	cfg.MaxAttempts = o.Config.Sync.RetryAttempts
	return cfg
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
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
