package store

import (
	"errors"
	"fmt"

	"github.com/roach88/qmailtrail/internal/logline"
)

// IntegrityCode categorizes an inconsistency found in the log.
type IntegrityCode string

const (
	// CodeDuplicateMessage: new msg for an id that is still live.
	CodeDuplicateMessage IntegrityCode = "duplicate_message"

	// CodeInfoOnPopulated: info msg for a record that already holds data.
	CodeInfoOnPopulated IntegrityCode = "info_on_populated"

	// CodeInfoOnUnseen: info msg for an id with no new msg.
	CodeInfoOnUnseen IntegrityCode = "info_on_unseen"

	// CodeRemoveAbsent: end msg for an id that is not live.
	CodeRemoveAbsent IntegrityCode = "remove_absent"

	// CodeDeliveryRebound: starting delivery for a delivery id still awaiting its result.
	CodeDeliveryRebound IntegrityCode = "delivery_rebound"
)

// IntegrityError reports an inconsistency that the store has already repaired.
type IntegrityError struct {
	Code IntegrityCode

	// Message is a human-readable description.
	Message string

	MessageID  logline.ID
	DeliveryID logline.ID

	// Prior is the record as it was before the operation, when one existed.
	Prior *MessageRecord
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.DeliveryID != "" {
		return fmt.Sprintf("%s: %s (msg=%s, delivery=%s)", e.Code, e.Message, e.MessageID, e.DeliveryID)
	}
	return fmt.Sprintf("%s: %s (msg=%s)", e.Code, e.Message, e.MessageID)
}

// IsIntegrityError reports whether err is (or wraps) an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// AsIntegrityError unwraps err to an *IntegrityError, or returns nil.
func AsIntegrityError(err error) *IntegrityError {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie
	}
	return nil
}

func integrity(code IntegrityCode, id logline.ID, prior *MessageRecord, format string, args ...any) *IntegrityError {
	return &IntegrityError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		MessageID: id,
		Prior:     prior,
	}
}
