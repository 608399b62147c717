// Package engine correlates classified qmail-send log lines into delivery records.
//
// ARCHITECTURE:
//
// Single-Pass Ingest:
// Lines are fed one at a time through Ingest, in log order. Each call is fully
// processed before it returns:
//  1. logline.Classify picks the event kind (first matching pattern wins)
//  2. the handler for that kind applies one transition to the store
//  3. a delivery result that resolves emits one formatted line to the results writer
//
// Nothing is buffered across lines and nothing is reordered. There is no
// goroutine and no locking: an Engine and its Store belong to one caller.
//
// Message Lifecycle:
//
//	new msg -> info msg -> (starting delivery -> delivery)* -> end msg
//
// A message may see many delivery cycles (one per recipient). The delivery
// fields of the record are shared, so each result overwrites the previous
// one; only the result being emitted is guaranteed to be on the record.
//
// ERROR HANDLING:
//
// Inconsistent input never stops the engine. Integrity problems are repaired
// by the store and reported as Warnings to the Reporter (stderr by default),
// separately from the results stream. Ingest only returns an error when the
// store or the results writer fails.
package engine
