//go:build linux

package ksema

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// futexHandle is the Linux backend for ksema.Handle: a private futex
// word used directly as the kernel wake primitive, the closest faithful
// analogue available from pure Go to the kernel port / POSIX unnamed
// semaphore the originating library chooses between per-platform.
type futexHandle struct {
	word int32
}

func newHandle() Handle {
	return &futexHandle{}
}

func (h *futexHandle) Signal() {
	atomic.AddInt32(&h.word, 1)
	// FUTEX_WAKE never fails in a way the caller can act on; a missed
	// wake here just means a waiter spins back into FUTEX_WAIT and
	// rechecks the word, which is always safe.
	_ = unix.Futex(&h.word, unix.FUTEX_WAKE|unix.FUTEX_PRIVATE_FLAG, 1, nil, nil, 0)
}

func (h *futexHandle) Wait(deadline Deadline) WaitOutcome {
	for {
		if cur := atomic.LoadInt32(&h.word); cur > 0 {
			if atomic.CompareAndSwapInt32(&h.word, cur, cur-1) {
				return Ok
			}
			continue
		}

		if deadline == Immediate {
			return TimedOut
		}

		var ts *unix.Timespec
		if deadline != Forever {
			remaining := time.Until(deadline.asTime())
			if remaining <= 0 {
				return TimedOut
			}
			t := unix.NsecToTimespec(remaining.Nanoseconds())
			ts = &t
		}

		err := unix.Futex(&h.word, unix.FUTEX_WAIT|unix.FUTEX_PRIVATE_FLAG, 0, ts, nil, 0)
		if err == unix.ETIMEDOUT && deadline != Forever {
			return TimedOut
		}
		// EAGAIN (word changed under us), EINTR (signal), and the
		// deadline-not-yet-reached case all fall through to recheck
		// the word at the top of the loop rather than surfacing as an
		// error to the caller.
	}
}

func (h *futexHandle) Destroy() {
	// A private futex word owns no kernel-side resource beyond the
	// memory already freed with the Handle itself.
}
