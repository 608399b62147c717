package harness

import (
	"strings"

	"github.com/roach88/qmailtrail/internal/engine"
	"github.com/roach88/qmailtrail/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool

	// Results are the emitted result lines, without newlines.
	Results []string

	// Warnings are the warnings reported, in order.
	Warnings []engine.Warning

	// Pending is the store content after the last line.
	Pending store.Snapshot

	// Errors describes each failed expectation.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Results:  []string{},
		Warnings: []engine.Warning{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// WarningCodes returns the code of each warning, in order.
func (r *Result) WarningCodes() []string {
	codes := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		codes = append(codes, string(w.Code))
	}
	return codes
}

// Output renders the result lines as the CLI would print them.
func (r *Result) Output() []byte {
	if len(r.Results) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(r.Results, "\n") + "\n")
}
