package testutil

import (
	"fmt"
	"io"
	"strings"
)

// Log builds a qmail-send log in order.
//
//	log := testutil.NewLog().
//		NewMsg(123).
//		Info(123, 4500, "alice@example.com").
//		Start(1, 123, "remote", "bob@example.org").
//		Delivery(1, "success", "did_0+0+1/").
//		End(123)
//
// Delivery and End take their stamp from the builder's clock; use
// DeliveryAt and EndAt to choose one.
type Log struct {
	clock *DeterministicClock
	lines []string
}

// NewLog creates an empty log stamped from a fresh DeterministicClock.
func NewLog() *Log {
	return &Log{clock: NewDeterministicClock()}
}

// Raw appends a line verbatim (chainable).
func (l *Log) Raw(line string) *Log {
	l.lines = append(l.lines, line)
	return l
}

// NewMsg appends "new msg <id>" (chainable).
func (l *Log) NewMsg(id int) *Log {
	return l.Raw(fmt.Sprintf("new msg %d", id))
}

// Info appends "info msg <id>: bytes <size> from <sender> qp ... uid ..." (chainable).
// An empty sender is logged as "<>".
func (l *Log) Info(id, size int, sender string) *Log {
	return l.Raw(fmt.Sprintf("info msg %d: bytes %d from <%s> qp %d uid 89", id, size, sender, 30000+id))
}

// Start appends "starting delivery <d>: msg <id> to <direction> <recipient>" (chainable).
func (l *Log) Start(deliveryID, messageID int, direction, recipient string) *Log {
	return l.Raw(fmt.Sprintf("starting delivery %d: msg %d to %s %s", deliveryID, messageID, direction, recipient))
}

// Delivery appends a clock-stamped delivery result (chainable).
func (l *Log) Delivery(deliveryID int, status, detail string) *Log {
	return l.DeliveryAt(l.clock.Next(), deliveryID, status, detail)
}

// DeliveryAt appends "<stamp> delivery <d>: <status>: <detail>" (chainable).
func (l *Log) DeliveryAt(stamp string, deliveryID int, status, detail string) *Log {
	return l.Raw(fmt.Sprintf("%s delivery %d: %s: %s", stamp, deliveryID, status, detail))
}

// End appends a clock-stamped "end msg" (chainable).
func (l *Log) End(id int) *Log {
	return l.EndAt(l.clock.Next(), id)
}

// EndAt appends "<stamp> end msg <id>" (chainable).
func (l *Log) EndAt(stamp string, id int) *Log {
	return l.Raw(fmt.Sprintf("%s end msg %d", stamp, id))
}

// Status appends a qmail-send status line, which carries no event (chainable).
func (l *Log) Status(local, remote int) *Log {
	return l.Raw(fmt.Sprintf("status: local %d/10 remote %d/20", local, remote))
}

// Lines returns a copy of the lines built so far.
func (l *Log) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// String joins the lines with trailing newlines, as qmail-send writes them.
func (l *Log) String() string {
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}

// Reader returns the log as an io.Reader.
func (l *Log) Reader() io.Reader {
	return strings.NewReader(l.String())
}
