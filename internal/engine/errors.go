package engine

import (
	"github.com/roach88/qmailtrail/internal/logline"
	"github.com/roach88/qmailtrail/internal/store"
)

// WarningCode categorizes a Warning.
type WarningCode string

const (
	// Repairs applied by the store.
	WarnDuplicateMessage WarningCode = WarningCode(store.CodeDuplicateMessage)
	WarnInfoOnPopulated  WarningCode = WarningCode(store.CodeInfoOnPopulated)
	WarnInfoOnUnseen     WarningCode = WarningCode(store.CodeInfoOnUnseen)
	WarnRemoveAbsent     WarningCode = WarningCode(store.CodeRemoveAbsent)
	WarnDeliveryRebound  WarningCode = WarningCode(store.CodeDeliveryRebound)

	// WarnOrphanDelivery: a bound delivery resolved after its message was removed.
	WarnOrphanDelivery WarningCode = "orphan_delivery"

	// WarnResultWithoutStart: the bound message carries no delivery start
	// fields, because it was reset by a duplicate new msg in between.
	WarnResultWithoutStart WarningCode = "result_without_start"
)

// Warning is a recoverable inconsistency found in the log.
type Warning struct {
	Code WarningCode

	// Message is a human-readable description.
	Message string

	// LineNo is the 1-based number of the offending line; Line is its text.
	LineNo int64
	Line   string

	MessageID  logline.ID
	DeliveryID logline.ID

	// Prior is the affected record before the repair, when one existed.
	Prior *store.MessageRecord
}

// warningFromIntegrity converts a store repair into a Warning.
func warningFromIntegrity(ie *store.IntegrityError) Warning {
	return Warning{
		Code:       WarningCode(ie.Code),
		Message:    ie.Message,
		MessageID:  ie.MessageID,
		DeliveryID: ie.DeliveryID,
		Prior:      ie.Prior,
	}
}

// WarningCodes lists every code a Warning can carry.
var WarningCodes = []WarningCode{
	WarnDuplicateMessage,
	WarnInfoOnPopulated,
	WarnInfoOnUnseen,
	WarnRemoveAbsent,
	WarnDeliveryRebound,
	WarnOrphanDelivery,
	WarnResultWithoutStart,
}
