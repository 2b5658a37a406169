// Package clock provides the simulator's tick counting and wall-clock
// timestamp formatting. Every component that needs "now" for a log line
// or report goes through here rather than calling time.Now directly, so
// tests can format against a fixed layout consistently.
package clock

import (
	"sync/atomic"
	"time"
)

// layout matches the "HH:MM:SS" timestamps used in violation messages
// and process logs.
const layout = "15:04:05"

// Timestamp returns the current wall-clock time formatted as HH:MM:SS.
func Timestamp() string {
	return time.Now().Format(layout)
}

// Ticks is a monotonic counter of scheduling ticks, split between active
// (an instruction was dispatched) and idle (a core found no work). It is
// safe for concurrent use by multiple core workers.
type Ticks struct {
	active uint64
	idle   uint64
}

// Active records one active tick.
func (t *Ticks) Active() {
	atomic.AddUint64(&t.active, 1)
}

// Idle records one idle tick.
func (t *Ticks) Idle() {
	atomic.AddUint64(&t.idle, 1)
}

// ActiveCount returns the number of active ticks recorded so far.
func (t *Ticks) ActiveCount() uint64 {
	return atomic.LoadUint64(&t.active)
}

// IdleCount returns the number of idle ticks recorded so far.
func (t *Ticks) IdleCount() uint64 {
	return atomic.LoadUint64(&t.idle)
}

// Total returns ActiveCount()+IdleCount().
func (t *Ticks) Total() uint64 {
	return t.ActiveCount() + t.IdleCount()
}
