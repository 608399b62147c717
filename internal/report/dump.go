package report

import (
	"fmt"
	"io"

	"github.com/roach88/qmailtrail/internal/store"
)

// WritePending dumps both correlation tables, one row per line:
//
//	d_id:<delivery> m_id:<message>
//	m_id:<message> size=<size> from=<sender> direction=<dir> to=<recipient> ...
func WritePending(w io.Writer, snap store.Snapshot) error {
	for _, b := range snap.Deliveries {
		if _, err := fmt.Fprintf(w, "d_id:%s m_id:%s\n", b.DeliveryID, b.MessageID); err != nil {
			return err
		}
	}
	for _, rec := range snap.Messages {
		if _, err := fmt.Fprintf(w, "m_id:%s %s\n", rec.ID, DescribeRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

// DescribeRecord renders every known field of rec as key=value pairs.
// An untouched record renders as "{}".
func DescribeRecord(rec store.MessageRecord) string {
	if rec.IsEmpty() {
		return "{}"
	}
	s := fmt.Sprintf("size=%q from=%q", rec.Size, rec.Sender)
	if rec.Fields.Has(store.FieldDelivery) {
		s += fmt.Sprintf(" direction=%s to=%q", rec.Direction, rec.Recipient)
	}
	if rec.Fields.Has(store.FieldResult) {
		s += fmt.Sprintf(" status=%q detail=%q time=%d", rec.DeliveryStatus, rec.DeliveryDetail, rec.CompletionTime.Unix())
	}
	return s
}
