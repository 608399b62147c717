package engine

import (
	"github.com/google/uuid"
)

// RunIDGenerator produces the id that tags every diagnostic of one run.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run ids from
// a cron job sort by start time in aggregated logs.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns the same run id every time, for reproducible tests.
type FixedGenerator string

// Generate returns g.
func (g FixedGenerator) Generate() string {
	return string(g)
}
