package engine

import (
	"log/slog"

	"github.com/roach88/qmailtrail/internal/report"
)

// Reporter receives Warnings as they are found.
type Reporter interface {
	Report(w Warning)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(w Warning)

// Report calls f(w).
func (f ReporterFunc) Report(w Warning) {
	f(w)
}

// SlogReporter writes each Warning as a WARN record.
type SlogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r SlogReporter) Report(w Warning) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"code", string(w.Code),
		"line_no", w.LineNo,
		"line", w.Line,
	}
	if w.MessageID != "" {
		attrs = append(attrs, "msg_id", w.MessageID.String())
	}
	if w.DeliveryID != "" {
		attrs = append(attrs, "delivery_id", w.DeliveryID.String())
	}
	if w.Prior != nil {
		attrs = append(attrs, "prior", report.DescribeRecord(*w.Prior))
	}

	logger.Warn(w.Message, attrs...)
}
