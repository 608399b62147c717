package logline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	reNewMessage     = regexp.MustCompile(`new msg ([0-9]+)`)
	reMessageInfo    = regexp.MustCompile(`info msg ([0-9]+): bytes ([0-9]*) from <([^>]*)>`)
	reDeliveryStart  = regexp.MustCompile(`starting delivery ([0-9]+): msg ([0-9]+) to (local|remote) (.*)`)
	reDeliveryResult = regexp.MustCompile(`([0-9.]+) delivery ([0-9]+): ([^:]+): (.*)`)
	reEndMessage     = regexp.MustCompile(`(?:([0-9.]+) )?end msg ([0-9]+)`)
)

// recognizer turns the submatches of one pattern into an Event.
// It returns false when a captured field does not parse, in which case the
// line counts as unrecognized.
type recognizer struct {
	re    *regexp.Regexp
	build func(m []string) (Event, bool)
}

// recognizers are tried in declaration order; the first match wins.
var recognizers = []recognizer{
	{reNewMessage, buildNewMessage},
	{reMessageInfo, buildMessageInfo},
	{reDeliveryStart, buildDeliveryStart},
	{reDeliveryResult, buildDeliveryResult},
	{reEndMessage, buildEndMessage},
}

// Classify matches line against the five recognized patterns in priority
// order and returns the first successful match.
//
// Returns (nil, false) for lines that match no pattern, and for lines that
// match a pattern but carry an unparseable timestamp. Neither case is an
// error: most qmail log lines are irrelevant here.
func Classify(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	for _, r := range recognizers {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ev, ok := r.build(m); ok {
			return ev, true
		}
		return nil, false
	}
	return nil, false
}

func buildNewMessage(m []string) (Event, bool) {
	id, ok := ParseID(m[1])
	if !ok {
		return nil, false
	}
	return NewMessage{MessageID: id}, true
}

func buildMessageInfo(m []string) (Event, bool) {
	id, ok := ParseID(m[1])
	if !ok {
		return nil, false
	}
	sender := text(m[3])
	if sender == "" {
		sender = RootSender
	}
	return MessageInfo{MessageID: id, Size: m[2], Sender: sender}, true
}

func buildDeliveryStart(m []string) (Event, bool) {
	did, ok := ParseID(m[1])
	if !ok {
		return nil, false
	}
	mid, ok := ParseID(m[2])
	if !ok {
		return nil, false
	}
	return DeliveryStart{
		DeliveryID: did,
		MessageID:  mid,
		Direction:  Direction(m[3]),
		Recipient:  text(m[4]),
	}, true
}

func buildDeliveryResult(m []string) (Event, bool) {
	ts, err := ParseTimestamp(m[1])
	if err != nil {
		return nil, false
	}
	did, ok := ParseID(m[2])
	if !ok {
		return nil, false
	}
	return DeliveryResult{
		Time:       ts,
		DeliveryID: did,
		Status:     text(m[3]),
		Detail:     text(m[4]),
	}, true
}

// buildEndMessage accepts a missing stamp; the time of an end msg is
// never used.
func buildEndMessage(m []string) (Event, bool) {
	var ts time.Time
	if m[1] != "" {
		var err error
		if ts, err = ParseTimestamp(m[1]); err != nil {
			return nil, false
		}
	}
	id, ok := ParseID(m[2])
	if !ok {
		return nil, false
	}
	return EndMessage{Time: ts, MessageID: id}, true
}

// ParseTimestamp converts qmail's "seconds.fraction" epoch stamp to a time.
//
// The decimal text is split and converted exactly, so a six-digit fraction
// survives to the microsecond. Digits beyond nanosecond precision are
// dropped.
func ParseTimestamp(s string) (time.Time, error) {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return time.Time{}, err
	}
	secText, fracText, _ := strings.Cut(s, ".")

	var sec int64
	if secText != "" {
		v, err := strconv.ParseInt(secText, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		sec = v
	}

	var nsec int64
	if fracText != "" {
		if len(fracText) > 9 {
			fracText = fracText[:9]
		}
		fracText += strings.Repeat("0", 9-len(fracText))
		v, err := strconv.ParseInt(fracText, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		nsec = v
	}

	return time.Unix(sec, nsec), nil
}

// text normalizes a free-text field to NFC.
func text(s string) string {
	return norm.NFC.String(s)
}
