// Package ksema is a kernel-semaphore adapter: a thin, lazily-allocated
// handle over whichever OS wake primitive is available, tolerant of
// spurious wakeups and interrupted waits.
//
// Both backends loop internally on wakeups that find no unit to consume,
// so their Wait returns Ok only after consuming a Signal. The Handle
// interface still permits spurious Ok returns, and dispatch.Semaphore
// reconciles every wake against its sent_ksignals counter regardless.
// ksema only has to guarantee that Wait eventually returns, either
// because Signal was called or because the deadline passed.
package ksema

import (
	"math"
	"time"
)

// Deadline is an absolute point in time, expressed as UnixNano, or one
// of the two sentinels below.
type Deadline int64

const (
	// Immediate never blocks: equivalent to a zero-duration wait.
	Immediate Deadline = 0
	// Forever blocks until Signal is observed.
	Forever Deadline = math.MaxInt64
)

// At converts a wall-clock deadline to the opaque Deadline type.
func At(t time.Time) Deadline { return Deadline(t.UnixNano()) }

// After is a convenience for a relative deadline.
func After(d time.Duration) Deadline { return At(time.Now().Add(d)) }

func (d Deadline) asTime() time.Time { return time.Unix(0, int64(d)) }

// WaitOutcome is the result of a Handle.Wait call.
type WaitOutcome int

const (
	// Ok means a matching Signal was observed.
	Ok WaitOutcome = iota
	// TimedOut means the deadline passed with no Signal observed.
	TimedOut
)

// Handle is a single OS-backed wake primitive: a binary-ish counting
// gate with one unit of capacity added per Signal, consumed by one Wait.
// Spurious returns from Wait are permitted by this interface; callers
// must reconcile against their own counter.
type Handle interface {
	// Signal releases one unit. Only programmer error (use after
	// Destroy) is a legal failure, and that is fatal at the caller.
	Signal()
	// Wait blocks the calling goroutine until Signal is observed or
	// deadline passes. "Interrupted" conditions are retried internally
	// and never surface here.
	Wait(deadline Deadline) WaitOutcome
	// Destroy releases the OS resource. The caller must guarantee no
	// other goroutine is still waiting on this handle.
	Destroy()
}

// New allocates a fresh platform-backed Handle. It is the single
// constructor both backends satisfy; selection happens at compile time
// via the ksema_linux.go / ksema_portable.go build-tagged files.
func New() Handle {
	return newHandle()
}
