package report

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Summary is the end-of-run tally.
type Summary struct {
	Lines      int64
	Results    int64
	Warnings   int64
	Pending    int64
	Deliveries int64
}

// String renders the summary with thousands separators, e.g.
// "12,345 lines, 310 deliveries, 2 warnings, 4 pending messages, 1 pending deliveries".
func (s Summary) String() string {
	return fmt.Sprintf("%s lines, %s deliveries, %s warnings, %s pending messages, %s pending deliveries",
		humanize.Comma(s.Lines),
		humanize.Comma(s.Results),
		humanize.Comma(s.Warnings),
		humanize.Comma(s.Pending),
		humanize.Comma(s.Deliveries),
	)
}
