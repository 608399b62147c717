package logline

import (
	"strings"
	"time"
)

// Kind identifies which of the five recognized line families an Event came from.
type Kind int

const (
	KindNewMessage Kind = iota + 1
	KindMessageInfo
	KindDeliveryStart
	KindDeliveryResult
	KindEndMessage
)

// String returns the snake_case name used in diagnostics and stats.
func (k Kind) String() string {
	switch k {
	case KindNewMessage:
		return "new_msg"
	case KindMessageInfo:
		return "info_msg"
	case KindDeliveryStart:
		return "starting_delivery"
	case KindDeliveryResult:
		return "delivery"
	case KindEndMessage:
		return "end_msg"
	default:
		return "unknown"
	}
}

// Kinds lists every kind in classification priority order.
var Kinds = []Kind{
	KindNewMessage,
	KindMessageInfo,
	KindDeliveryStart,
	KindDeliveryResult,
	KindEndMessage,
}

// ID is a message or delivery identifier in canonical decimal form.
//
// qmail identifiers are unbounded integers (message ids are inode numbers,
// delivery ids are counters that survive restarts), so they are kept as
// text with leading zeros stripped. Two IDs are equal exactly when the
// integers they spell are equal.
type ID string

// ParseID canonicalizes a run of ASCII digits.
// Returns false for an empty string or any non-digit byte.
func ParseID(s string) (ID, bool) {
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	t := strings.TrimLeft(s, "0")
	if t == "" {
		t = "0"
	}
	return ID(t), true
}

// String returns the canonical decimal text.
func (id ID) String() string {
	return string(id)
}

// Less orders IDs numerically.
func (id ID) Less(other ID) bool {
	if len(id) != len(other) {
		return len(id) < len(other)
	}
	return id < other
}

// Direction says whether a delivery targets a local mailbox or a remote host.
type Direction string

const (
	// DirectionUnknown marks a record that has not seen a delivery start.
	DirectionUnknown Direction = ""
	DirectionLocal   Direction = "local"
	DirectionRemote  Direction = "remote"
)

// RootSender replaces the empty envelope sender, which qmail uses for
// mail injected by root and for bounces.
const RootSender = "(root)"

// Event is one classified log line. The concrete type is one of
// NewMessage, MessageInfo, DeliveryStart, DeliveryResult or EndMessage.
type Event interface {
	Kind() Kind
}

// NewMessage is "new msg <id>": a message entered the queue.
type NewMessage struct {
	MessageID ID
}

// MessageInfo is "info msg <id>: bytes <n> from <addr>".
type MessageInfo struct {
	MessageID ID
	// Size is the byte count as logged. It may be empty.
	Size string
	// Sender is the envelope sender; RootSender when logged as "<>".
	Sender string
}

// DeliveryStart is "starting delivery <d>: msg <id> to <local|remote> <rcpt>".
type DeliveryStart struct {
	DeliveryID ID
	MessageID  ID
	Direction  Direction
	Recipient  string
}

// DeliveryResult is "<time> delivery <d>: <status>: <detail>".
type DeliveryResult struct {
	Time       time.Time
	DeliveryID ID
	Status     string
	Detail     string
}

// EndMessage is "<time> end msg <id>": the message left the queue.
// Time is zero when the line carries no stamp.
type EndMessage struct {
	Time      time.Time
	MessageID ID
}

func (NewMessage) Kind() Kind     { return KindNewMessage }
func (MessageInfo) Kind() Kind    { return KindMessageInfo }
func (DeliveryStart) Kind() Kind  { return KindDeliveryStart }
func (DeliveryResult) Kind() Kind { return KindDeliveryResult }
func (EndMessage) Kind() Kind     { return KindEndMessage }
