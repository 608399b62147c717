// Package testutil builds qmail-send log fixtures for tests.
//
// Log assembles lines in order with a fluent API; DeterministicClock supplies
// reproducible "seconds.micros" stamps for the lines that carry one.
// Not intended for production usage.
package testutil
