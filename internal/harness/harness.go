package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/qmailtrail/internal/engine"
	"github.com/roach88/qmailtrail/internal/store"
)

// RunID tags every scenario run, so diagnostics are reproducible.
const RunID = "harness-run"

// Run executes a scenario on a fresh store and checks its expectations.
//
// The returned error is reserved for failures to execute (store setup,
// storage errors); unmet expectations are recorded in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := openStore(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	loc, err := scenario.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	result := NewResult()
	var out bytes.Buffer

	eng := engine.New(st, &out,
		engine.WithVerbose(scenario.Verbose),
		engine.WithLocation(loc),
		engine.WithRunIDGenerator(engine.FixedGenerator(RunID)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithReporter(engine.ReporterFunc(func(w engine.Warning) {
			result.Warnings = append(result.Warnings, w)
		})),
	)

	for _, line := range scenario.Lines {
		if err := eng.Ingest(ctx, line); err != nil {
			return nil, fmt.Errorf("failed to ingest: %w", err)
		}
	}

	if s := strings.TrimRight(out.String(), "\n"); s != "" {
		result.Results = strings.Split(s, "\n")
	}

	result.Pending, err = eng.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending state: %w", err)
	}

	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.AddError(msg)
	}

	return result, nil
}

func openStore(backend string) (*store.Store, error) {
	switch backend {
	case "", BackendMemory:
		return store.NewMemory(), nil
	case BackendSQLite:
		st, err := store.OpenSQLite(store.MemoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
