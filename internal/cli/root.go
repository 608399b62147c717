package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/roach88/qmailtrail/internal/engine"
	"github.com/roach88/qmailtrail/internal/report"
	"github.com/roach88/qmailtrail/internal/store"
)

// Backend names accepted by --backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ValidBackends defines the allowed correlation store backends.
var ValidBackends = []string{BackendMemory, BackendSQLite}

// RootOptions holds the flags of the root command.
type RootOptions struct {
	Verbose     bool   // verbose result suffix
	Debug       bool   // DEBUG diagnostics
	Backend     string // "memory" | "sqlite"
	StateDB     string // sqlite file, empty for in-memory
	Summary     bool   // summary line on stderr at the end
	DumpPending bool   // in-flight tables on stderr at the end
	TZ          string // zone result times are shown in, empty for local

	// RunIDGenerator for testing (nil = UUIDv7Generator)
	RunIDGenerator engine.RunIDGenerator
}

// NewRootCommand creates the root command for the qmailtrail CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qmailtrail [flags] [file...]",
		Short: "Correlate qmail-send log lines into delivery records",
		Long: `Reads qmail-send logs and prints one line per finished delivery attempt.

Each line joins the message envelope (sender, size) with the delivery
(direction, recipient, status) and the time the result was logged.
Inconsistencies in the log are reported as warnings on stderr.

With no file, or when file is -, standard input is read.

Exit codes:
  0 - Success
  1 - Failure while processing (storage or output error)
  2 - Command error (unreadable file, invalid flags, etc.)

Examples:
  tail -F /var/log/qmail/current | qmailtrail
  qmailtrail -v --summary /var/log/qmail/@4000*.s current
  qmailtrail --backend sqlite --state-db /tmp/trail.db --dump-pending current`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidBackend(opts.Backend) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends))
			}
			if opts.StateDB != "" && opts.Backend != BackendSQLite {
				return NewExitError(ExitCommandError, "--state-db requires --backend sqlite")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrail(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose result lines (size, status and detail)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "debug diagnostics on stderr")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendMemory, "correlation store (memory|sqlite)")
	cmd.Flags().StringVar(&opts.StateDB, "state-db", "", "sqlite database file (default in-memory)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "print a summary line to stderr at the end")
	cmd.Flags().BoolVar(&opts.DumpPending, "dump-pending", false, "print in-flight messages and deliveries to stderr at the end")
	cmd.Flags().StringVar(&opts.TZ, "tz", "", "time zone for result times, e.g. UTC (default local)")

	cmd.AddCommand(NewTestCommand())

	return cmd
}

func runTrail(cmd *cobra.Command, opts *RootOptions, args []string) error {
	errOut := cmd.ErrOrStderr()

	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	loc := time.Local
	if opts.TZ != "" {
		var err error
		loc, err = time.LoadLocation(opts.TZ)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid time zone", err)
		}
	}

	st, err := openStore(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	runIDGen := opts.RunIDGenerator
	if runIDGen == nil {
		runIDGen = engine.UUIDv7Generator{}
	}
	eng := engine.New(st, cmd.OutOrStdout(),
		engine.WithVerbose(opts.Verbose),
		engine.WithLocation(loc),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(runIDGen),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			// A second signal gets the default behaviour and kills the process.
			signal.Stop(sigChan)
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Debug("run starting", "run", eng.RunID(), "backend", opts.Backend, "inputs", len(args))

	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, name := range args {
		if err := ingestInput(ctx, cmd, eng, name); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			return err
		}
	}

	// Report what was collected even after a signal.
	ctx = context.WithoutCancel(ctx)

	if opts.Summary {
		sum, err := eng.Summary(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read pending state", err)
		}
		fmt.Fprintln(errOut, sum.String())
	}

	if opts.DumpPending {
		snap, err := eng.Pending(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read pending state", err)
		}
		if err := report.WritePending(errOut, snap); err != nil {
			return WrapExitError(ExitFailure, "failed to write pending state", err)
		}
	}

	stats := eng.Stats()
	slog.Debug("run finished",
		"lines", stats.Lines,
		"ignored", stats.Ignored,
		"results", stats.Results,
		"warnings", stats.Warnings,
		"dropped", stats.Dropped,
	)
	return nil
}

// ingestInput streams one named input through the engine; "-" is stdin.
func ingestInput(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, name string) error {
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(name)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open log %s", name), err)
		}
		defer f.Close()
		r = f
	}

	// A read blocked on an idle pipe or terminal returns once the input is closed.
	if c, ok := r.(io.Closer); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()
	}

	slog.Debug("reading log", "input", name)
	if err := eng.Run(ctx, r); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to process %s", name), err)
	}
	return nil
}

func openStore(opts *RootOptions) (*store.Store, error) {
	if opts.Backend != BackendSQLite {
		return store.NewMemory(), nil
	}
	path := opts.StateDB
	if path == "" {
		path = store.MemoryPath
	}
	slog.Debug("opening database", "path", path)
	return store.OpenSQLite(path)
}

// isValidBackend checks if the backend is one of the allowed values.
func isValidBackend(backend string) bool {
	for _, b := range ValidBackends {
		if b == backend {
			return true
		}
	}
	return false
}
