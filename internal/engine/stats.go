package engine

import "github.com/roach88/qmailtrail/internal/logline"

// Stats counts what the engine has seen.
type Stats struct {
	// Lines ingested, recognized or not.
	Lines int64
	// Ignored lines matched no pattern.
	Ignored int64
	// Results emitted.
	Results int64
	// Warnings reported.
	Warnings int64
	// Dropped results referenced an unbound delivery id.
	Dropped int64

	byKind [logline.KindEndMessage + 1]int64
}

// Recognized returns how many lines classified as k.
func (s Stats) Recognized(k logline.Kind) int64 {
	if k < 0 || int(k) >= len(s.byKind) {
		return 0
	}
	return s.byKind[k]
}

func (s *Stats) countKind(k logline.Kind) {
	if k < 0 || int(k) >= len(s.byKind) {
		return
	}
	s.byKind[k]++
}
