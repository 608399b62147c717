package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/qmailtrail/internal/logline"
	"github.com/roach88/qmailtrail/internal/report"
	"github.com/roach88/qmailtrail/internal/store"
)

// Engine turns a qmail-send log stream into delivery lines.
//
// Thread-safety model: none. Ingest and Run must be called from one
// goroutine; the Store must not be shared with another Engine.
type Engine struct {
	store    *store.Store
	results  io.Writer
	format   report.Formatter
	reporter Reporter
	logger   *slog.Logger
	runIDGen RunIDGenerator
	runID    string
	stats    Stats

	// current line, for warnings
	lineNo int64
	line   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithVerbose selects the verbose result suffix (size and detail included).
func WithVerbose(verbose bool) Option {
	return func(e *Engine) {
		e.format.Verbose = verbose
	}
}

// WithLocation sets the zone result times are rendered in. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.format.Location = loc
	}
}

// WithReporter sets where Warnings go. Default: SlogReporter on the engine logger.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithLogger sets the logger used for debug tracing and the default reporter.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator overrides the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDGen = g
	}
}

// New creates an Engine over st that writes one line per resolved delivery to results.
func New(st *store.Store, results io.Writer, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		results: results,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.runIDGen == nil {
		e.runIDGen = UUIDv7Generator{}
	}
	e.runID = e.runIDGen.Generate()

	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("run", e.runID)

	if e.reporter == nil {
		e.reporter = SlogReporter{Logger: e.logger}
	}

	return e
}

// RunID returns the id attached to every diagnostic of this engine.
func (e *Engine) RunID() string {
	return e.runID
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Ingest processes one log line.
//
// Unrecognized lines are ignored. Integrity problems are reported to the
// Reporter and do not produce an error. The returned error is always a
// storage or output failure.
func (e *Engine) Ingest(ctx context.Context, line string) error {
	line = strings.TrimRight(line, "\r\n")
	e.stats.Lines++
	e.lineNo = e.stats.Lines
	e.line = line

	ev, ok := logline.Classify(line)
	if !ok {
		e.stats.Ignored++
		return nil
	}
	e.stats.countKind(ev.Kind())

	e.logger.Debug("event",
		"kind", ev.Kind().String(),
		"line_no", e.lineNo,
	)

	if err := e.dispatch(ctx, ev); err != nil {
		return fmt.Errorf("line %d: %w", e.lineNo, err)
	}
	return nil
}

// Run ingests every line of r until EOF, the first failure, or ctx is cancelled.
// Lines of any length are accepted.
func (e *Engine) Run(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if ierr := e.Ingest(ctx, line); ierr != nil {
				return ierr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
	}
}

// Pending returns the messages and deliveries still in flight.
func (e *Engine) Pending(ctx context.Context) (store.Snapshot, error) {
	return e.store.Pending(ctx)
}

// Summary tallies the run so far, including what is still in flight.
func (e *Engine) Summary(ctx context.Context) (report.Summary, error) {
	snap, err := e.store.Pending(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summary{
		Lines:      e.stats.Lines,
		Results:    e.stats.Results,
		Warnings:   e.stats.Warnings,
		Pending:    int64(len(snap.Messages)),
		Deliveries: int64(len(snap.Deliveries)),
	}, nil
}

// check separates store repairs from real failures: repairs are reported
// and swallowed, anything else is returned.
func (e *Engine) check(err error) error {
	if err == nil {
		return nil
	}
	if ie := store.AsIntegrityError(err); ie != nil {
		e.warn(warningFromIntegrity(ie))
		return nil
	}
	return err
}

func (e *Engine) warn(w Warning) {
	w.LineNo = e.lineNo
	w.Line = e.line
	e.stats.Warnings++
	e.reporter.Report(w)
}

func (e *Engine) emit(rec store.MessageRecord) error {
	if _, err := fmt.Fprintln(e.results, e.format.Format(rec)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	e.stats.Results++
	return nil
}
