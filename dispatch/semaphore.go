// Package dispatch implements the core synchronization primitives of a
// user-space concurrency library: a counting semaphore, a task-group
// coordinator built on it, and a one-shot initializer.
package dispatch

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/veezhang/godispatch/internal/ksema"
	"github.com/veezhang/godispatch/internal/xatomic"
)

// Semaphore is a counting semaphore: a fast-path atomic counter whose
// slow path delegates to a lazily-allocated kernel-semaphore adapter.
//
// A Semaphore must not be copied after first use.
type Semaphore struct {
	value        xatomic.Int64
	orig         int64
	sentKsignals xatomic.Int64
	handle       atomic.Value // ksema.Handle, installed at most once
}

// NewSemaphore creates a semaphore with the given initial count. It
// returns nil for a negative initial value rather than an error, the
// one non-fatal "return null" case in this package.
func NewSemaphore(initial int64) *Semaphore {
	if initial < 0 {
		return nil
	}
	s := &Semaphore{orig: initial}
	s.value.StoreRelaxed(initial)
	return s
}

func (s *Semaphore) ensureHandle() ksema.Handle {
	if v := s.handle.Load(); v != nil {
		return v.(ksema.Handle)
	}
	h := ksema.New()
	if s.handle.CompareAndSwap(nil, h) {
		return h
	}
	// Lost the install race: the winner's handle is the one everyone
	// else will use, so discard ours.
	h.Destroy()
	return s.handle.Load().(ksema.Handle)
}

// Signal increments the semaphore's count, waking one blocked waiter if
// any exist.
func (s *Semaphore) Signal() {
	v := s.value.AddRelease(1)
	if v > 0 {
		return // fast path: no waiters were blocked
	}
	if v == math.MinInt64 {
		abort("unbalanced signal", zap.Int64("value", v))
	}
	// Slow path: a waiter is (or is about to be) blocked in the kernel
	// adapter. Publish the signal before waking it so a waiter that
	// wakes spuriously and re-checks sentKsignals still finds it.
	s.sentKsignals.AddRelease(1)
	s.ensureHandle().Signal()
}

// Wait blocks until a matching Signal is observed or deadline passes.
// It returns ErrTimeout on timeout and nil otherwise.
func (s *Semaphore) Wait(deadline ksema.Deadline) error {
	if v := s.value.AddAcquire(-1); v >= 0 {
		return nil // fast path
	}

	h := s.ensureHandle()
	for {
		if s.drainSentKsignal() {
			return nil
		}

		if deadline == ksema.Immediate {
			if s.undoDecrement() {
				return ErrTimeout
			}
			continue // value turned non-negative concurrently; re-drain
		}

		if h.Wait(deadline) == ksema.Ok {
			continue // goto drain: may be a genuine or spurious wake
		}

		if s.undoDecrement() {
			return ErrTimeout
		}
		// Lost the undo race to a concurrent signal; re-drain.
	}
}

// drainSentKsignal consumes one pending kernel signal via a CAS loop,
// filtering the spurious wakeups the kernel adapter is allowed to
// produce.
func (s *Semaphore) drainSentKsignal() bool {
	for {
		cur := s.sentKsignals.LoadRelaxed()
		if cur <= 0 {
			return false
		}
		if s.sentKsignals.CompareAndSwapRelaxed(cur, cur-1) {
			return true
		}
	}
}

// undoDecrement reverses this goroutine's earlier Wait decrement via a
// CAS loop, as long as value is still negative. It returns false
// without undoing anything if a concurrent Signal already brought value
// back to non-negative, in which case the caller should look for that
// signal instead.
func (s *Semaphore) undoDecrement() bool {
	for {
		cur := s.value.LoadRelaxed()
		if cur >= 0 {
			return false
		}
		if s.value.CompareAndSwapRelaxed(cur, cur+1) {
			return true
		}
	}
}

// Dispose releases the semaphore's kernel resource. It aborts if the
// semaphore is destroyed while a Signal/Wait pair is still outstanding
// (value < orig).
func (s *Semaphore) Dispose() {
	if v := s.value.LoadRelaxed(); v < s.orig {
		abort("destroyed in use", zap.Int64("value", v), zap.Int64("orig", s.orig))
		return
	}
	if v := s.handle.Load(); v != nil {
		v.(ksema.Handle).Destroy()
	}
}
