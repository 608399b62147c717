package store

import (
	"time"

	"github.com/roach88/qmailtrail/internal/logline"
)

// Placeholder values for a message first seen through a delivery start.
const (
	UnknownSize   = "?"
	UnknownSender = "(Unknown)"
)

// Fields records which events have contributed to a MessageRecord.
type Fields uint8

const (
	// FieldInfo is set by an info msg line.
	FieldInfo Fields = 1 << iota
	// FieldPlaceholder is set when a delivery start synthesized the record.
	FieldPlaceholder
	// FieldDelivery is set by a starting delivery line.
	FieldDelivery
	// FieldResult is set by a delivery result line.
	FieldResult
)

// Has reports whether all bits in f are set.
func (fs Fields) Has(f Fields) bool {
	return fs&f == f
}

// MessageRecord is everything known about one queued message.
//
// Delivery fields are shared by every delivery of the message: a second
// delivery result overwrites the first, so only the most recently resolved
// delivery is visible.
type MessageRecord struct {
	ID             logline.ID
	Size           string
	Sender         string
	Direction      logline.Direction
	Recipient      string
	DeliveryStatus string
	DeliveryDetail string
	CompletionTime time.Time
	Fields         Fields
}

// IsEmpty reports whether the record has not been touched since "new msg".
func (r MessageRecord) IsEmpty() bool {
	return r.Fields == 0
}

// Info is the payload of an info msg line.
type Info struct {
	Size   string
	Sender string
}

// Delivery is the payload of a starting delivery line.
type Delivery struct {
	Direction logline.Direction
	Recipient string
}

// Result is the payload of a delivery result line.
type Result struct {
	Status string
	Detail string
	Time   time.Time
}

// Binding is one in-flight delivery.
type Binding struct {
	DeliveryID logline.ID
	MessageID  logline.ID
}

// Snapshot is the content of both tables, each sorted by numeric id.
type Snapshot struct {
	Messages   []MessageRecord
	Deliveries []Binding
}

func placeholder(id logline.ID) MessageRecord {
	return MessageRecord{
		ID:     id,
		Size:   UnknownSize,
		Sender: UnknownSender,
		Fields: FieldPlaceholder,
	}
}

func (r *MessageRecord) applyInfo(info Info) {
	r.Size = info.Size
	r.Sender = info.Sender
	r.Fields |= FieldInfo
}

func (r *MessageRecord) applyDelivery(d Delivery) {
	r.Direction = d.Direction
	r.Recipient = d.Recipient
	r.Fields |= FieldDelivery
}

func (r *MessageRecord) applyResult(res Result) {
	r.DeliveryStatus = res.Status
	r.DeliveryDetail = res.Detail
	r.CompletionTime = res.Time
	r.Fields |= FieldResult
}
