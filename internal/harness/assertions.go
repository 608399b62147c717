package harness

import (
	"fmt"
)

// EvaluateExpect compares a result with its expectations and returns one
// message per mismatch.
func EvaluateExpect(r *Result, exp Expect) []string {
	var errs []string

	errs = append(errs, compareList("results", exp.Results, r.Results)...)
	errs = append(errs, compareList("warnings", exp.Warnings, r.WarningCodes())...)

	messages := make([]string, 0, len(r.Pending.Messages))
	for _, rec := range r.Pending.Messages {
		messages = append(messages, rec.ID.String())
	}
	errs = append(errs, compareList("pending_messages", exp.PendingMessages, messages)...)

	deliveries := make([]string, 0, len(r.Pending.Deliveries))
	for _, b := range r.Pending.Deliveries {
		deliveries = append(deliveries, b.DeliveryID.String())
	}
	errs = append(errs, compareList("pending_deliveries", exp.PendingDeliveries, deliveries)...)

	return errs
}

// compareList reports every position where want and got differ, plus any
// length mismatch.
func compareList(field string, want, got []string) []string {
	var errs []string

	if len(want) != len(got) {
		errs = append(errs, fmt.Sprintf("%s: expected %d entries, got %d", field, len(want), len(got)))
	}

	n := len(want)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			errs = append(errs, fmt.Sprintf("%s[%d]: expected %q, got %q", field, i, want[i], got[i]))
		}
	}

	return errs
}
