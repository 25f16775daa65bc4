// Package xatomic provides the typed atomic load/store/compare-exchange
// primitives the dispatch package is built on, plus the barrier used by
// the one-shot initializer.
//
// Go's memory model gives every operation in sync/atomic sequential
// consistency, which is at least as strong as any of relaxed, acquire,
// release or acq_rel. There is no way to ask the Go runtime for a weaker
// ordering than that, so the Acquire/Release/Relaxed names below are not
// separate code paths — they exist so call sites read the same way the
// source they were ported from reads, and so a reviewer can tell which
// ordering each call site actually needs without re-deriving it.
package xatomic

import (
	"runtime"
	"sync/atomic"

	uatomic "go.uber.org/atomic"
)

// Int64 is a signed counter with ordering-annotated method names:
// relaxed reads/writes for bookkeeping counters, acquire on decrement,
// release on increment.
type Int64 struct {
	v uatomic.Int64
}

func (i *Int64) LoadRelaxed() int64 { return i.v.Load() }

func (i *Int64) StoreRelaxed(val int64) { i.v.Store(val) }

// AddRelease adds delta and returns the new value. Used to publish
// "signal sent" / "work done" to other goroutines.
func (i *Int64) AddRelease(delta int64) int64 { return i.v.Add(delta) }

// AddAcquire adds delta and returns the new value. Used for the
// decrement-to-consume side of a counter (semaphore wait, group enter).
func (i *Int64) AddAcquire(delta int64) int64 { return i.v.Add(delta) }

// AddRelaxed adds delta and returns the new value, with no ordering
// requirement beyond atomicity — used for bookkeeping tallies like
// group_waiters that are only read back through Swap or a CAS loop.
func (i *Int64) AddRelaxed(delta int64) int64 { return i.v.Add(delta) }

// CompareAndSwapRelaxed performs a compare-and-swap used for counter
// undo loops (timeout reversal) where no ordering beyond atomicity is
// required.
func (i *Int64) CompareAndSwapRelaxed(old, new int64) bool {
	return i.v.CompareAndSwap(old, new)
}

// Swap atomically sets a new value and returns the old one. Used by the
// group's wake() to atomically drain the group-waiters tally to zero.
func (i *Int64) Swap(new int64) int64 { return i.v.Swap(new) }

// Uint32 is an unsigned counter with relaxed-named accessors. The
// dispatch package keeps sent_ksignals and group_waiters in Int64 and
// does not use this type.
type Uint32 struct {
	v uatomic.Uint32
}

func (u *Uint32) LoadRelaxed() uint32 { return u.v.Load() }

func (u *Uint32) AddRelaxed(delta uint32) uint32 { return u.v.Add(delta) }

func (u *Uint32) CompareAndSwapRelaxed(old, new uint32) bool {
	return u.v.CompareAndSwap(old, new)
}

// Bool is a seq-cst flag for checks that need sequential consistency
// explicitly. dispatch.Once tracks its Done state with an
// atomic.Pointer, not with this type.
type Bool struct {
	v uatomic.Bool
}

func (b *Bool) Load() bool        { return b.v.Load() }
func (b *Bool) Store(val bool)    { b.v.Store(val) }
func (b *Bool) Swap(val bool) bool { return b.v.Swap(val) }

// HardwarePause is a brief spin-wait hint for the busy loops in the
// notification list walk and the one-shot waiter-stack walk, both of
// which must spin on a `next` pointer that is published slightly after
// the node it hangs off of becomes visible.
//
// runtime.Gosched is a whole-goroutine yield rather than a single
// PAUSE/YIELD instruction, but Go exposes no finer-grained spin hint to
// user code; it is the closest available primitive and keeps the spin
// from pegging a core while a publisher finishes its store.
func HardwarePause() {
	runtime.Gosched()
}

// MaximallySynchronizingBarrier is the store-side fence the one-shot
// initializer's leader relies on after running its thunk and before
// publishing Done. A plain atomic store already carries sequential
// consistency on every architecture Go runs on, so the explicit
// seq-cst store that marks the site Done is itself sufficient; this
// call exists as a named, documented point in the leader's path, and
// as the place to swap in a stronger primitive (e.g. an assembly
// fence) should Go's atomics ever stop implying one.
func MaximallySynchronizingBarrier() {
	var fence int32
	atomic.StoreInt32(&fence, 1)
	atomic.LoadInt32(&fence)
}
