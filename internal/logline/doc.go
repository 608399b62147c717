// Package logline classifies raw qmail-send log lines into typed events.
//
// qmail-send writes one line per state change of its queue. Five of those
// lines carry everything needed to reconstruct a delivery history:
//
//	new msg 123
//	info msg 123: bytes 4500 from <alice@example.com> qp 1000 uid 89
//	starting delivery 1: msg 123 to remote bob@example.org
//	1700000000.123456 delivery 1: deferred: connection_timed_out/
//	1700000000.223456 end msg 123
//
// Classify tries the recognizers in that fixed order and returns the first
// match. Every other line (status lines, bounce notices, multilog noise) is
// reported as unrecognized and is expected to be ignored by the caller.
//
// Patterns are searched for, not anchored, so lines carrying a multilog TAI64N
// label or a syslog prefix are recognized the same as bare lines.
package logline
