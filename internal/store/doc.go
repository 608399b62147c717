// Package store holds the correlation state for an in-progress log stream.
//
// Two tables are kept:
//   - messages:   message id  -> MessageRecord (what is known about the mail)
//   - deliveries: delivery id -> message id    (deliveries still in flight)
//
// A message row is created by "new msg", filled in by "info msg" and by each
// "starting delivery" / "delivery" pair, and dropped by "end msg". A binding
// row lives from "starting delivery" until the matching "delivery" result.
//
// # Integrity Violations
//
// qmail logs are routinely truncated or spliced, so the store never refuses
// an operation because of inconsistent input. It applies a best-effort repair
// and then returns an *IntegrityError describing what it found:
//
//	duplicate_message   new msg for a live id        -> reset to empty
//	info_on_populated   info msg for a filled record -> keep the old record
//	info_on_unseen      info msg for an unknown id   -> insert anyway
//	remove_absent       end msg for an unknown id    -> no-op
//	delivery_rebound    start for a bound delivery   -> rebind
//
// Any other error is a storage failure.
//
// # Backends
//
// NewMemory keeps both tables in Go maps. OpenSQLite keeps them in SQLite,
// in memory by default or in a scratch file for very long logs. The SQLite
// tables are emptied on open: correlation state never carries over between
// runs.
//
// A Store is owned by a single engine and is not safe for concurrent use.
package store
