package testutil

import (
	"fmt"
	"sync"
)

// DefaultEpoch is the first second stamped by a new DeterministicClock
// (2023-11-14 22:13:20 UTC).
const DefaultEpoch int64 = 1700000000

// DeterministicClock hands out increasing qmail timestamps for tests.
//
// Each Next() advances by one second, so rendered result times differ in
// the seconds field and never carry a fraction.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch int64
	seq   int64
}

// NewDeterministicClock creates a clock whose first stamp is DefaultEpoch.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultEpoch)
}

// NewDeterministicClockAt creates a clock whose first stamp is epoch.
func NewDeterministicClockAt(epoch int64) *DeterministicClock {
	return &DeterministicClock{epoch: epoch}
}

// Next returns the next stamp, e.g. "1700000000.000000".
func (c *DeterministicClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := fmt.Sprintf("%d.000000", c.epoch+c.seq)
	c.seq++
	return s
}

// Reset rewinds the clock so the next stamp is the epoch again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
