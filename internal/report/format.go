// Package report renders delivery records and run summaries as text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/qmailtrail/internal/logline"
	"github.com/roach88/qmailtrail/internal/store"
)

// TimeLayout is the default date-time text form, without the fraction.
const TimeLayout = "2006-01-02 15:04:05"

// UnknownRecipient stands in for a recipient that was never logged.
const UnknownRecipient = "(Unknown)"

// Formatter renders one resolved delivery per line.
//
//	local:   <time> <recipient> <== <sender> <suffix>
//	remote:  <time> <sender> ==> <recipient> <suffix>
//	unknown: <time> <sender> ?? <recipient> <suffix>
//
// The suffix is "(ds: <status>)", or "(s: <size>, ds: <status>, dm: <detail>)"
// when Verbose is set.
type Formatter struct {
	Verbose bool

	// Location is the zone times are shown in. Nil means time.Local.
	Location *time.Location
}

// Format renders rec. Fields that were never logged are shown as placeholders.
func (f Formatter) Format(rec store.MessageRecord) string {
	var b strings.Builder

	when := f.FormatTime(rec.CompletionTime)
	sender := orDefault(rec.Sender, store.UnknownSender)
	recipient := orDefault(rec.Recipient, UnknownRecipient)

	switch rec.Direction {
	case logline.DirectionLocal:
		fmt.Fprintf(&b, "%s %s <== %s ", when, recipient, sender)
	case logline.DirectionRemote:
		fmt.Fprintf(&b, "%s %s ==> %s ", when, sender, recipient)
	default:
		fmt.Fprintf(&b, "%s %s ?? %s ", when, sender, recipient)
	}

	if f.Verbose {
		size := rec.Size
		if size == "" && !rec.Fields.Has(store.FieldInfo) {
			size = store.UnknownSize
		}
		fmt.Fprintf(&b, "(s: %s, ds: %s, dm: %s)", size, rec.DeliveryStatus, rec.DeliveryDetail)
	} else {
		fmt.Fprintf(&b, "(ds: %s)", rec.DeliveryStatus)
	}

	return b.String()
}

// FormatTime renders t as "YYYY-MM-DD HH:MM:SS", followed by ".ffffff" when
// the microsecond part is non-zero. t is rounded to the nearest microsecond.
func (f Formatter) FormatTime(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc).Round(time.Microsecond)

	s := t.Format(TimeLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
