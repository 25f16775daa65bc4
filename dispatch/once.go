package dispatch

import (
	"sync/atomic"

	"github.com/veezhang/godispatch/internal/ksema"
	"github.com/veezhang/godispatch/internal/semacache"
	"github.com/veezhang/godispatch/internal/xatomic"
)

// onceWaiter is a node in the intrusive waiter stack rooted at
// Once.state: a next pointer toward the stack's base, plus a
// thread-cached semaphore to block on.
type onceWaiter struct {
	next atomic.Pointer[onceWaiter]
	sema ksema.Handle
}

// doneMarker is the "done" sentinel: a pointer value that can never
// equal a real waiter node's address. A dedicated package variable
// gives that guarantee directly.
var doneMarker = &onceWaiter{}

// Once is a lock-free "run exactly once across goroutines" coordinator
// whose fast path, once the thunk has completed, is a single load and
// compare.
//
// The zero value is a usable Once in the Fresh state, matching
// sync.Once's zero-value contract.
type Once struct {
	state atomic.Pointer[onceWaiter]
}

// Do runs f exactly once for this Once, regardless of how many
// goroutines call Do concurrently, and blocks any other caller until
// that single run completes. Every call to Do, including the one that
// ran f, happens-after f's side effects once it returns.
func (o *Once) Do(f func()) {
	if o.state.Load() == doneMarker {
		return // fast path: single load + compare, wait-free
	}
	o.doSlow(f)
}

func (o *Once) doSlow(f func()) {
	self := &onceWaiter{}

	if o.state.CompareAndSwap(nil, self) {
		o.lead(f, self)
		return
	}
	o.join(self)
}

// lead runs as the single goroutine that won the CAS onto a Fresh site.
func (o *Once) lead(f func(), self *onceWaiter) {
	f()

	// Everything f wrote must be visible to any goroutine that later
	// observes Done on the fast path, with no read-side fence of its
	// own.
	xatomic.MaximallySynchronizingBarrier()

	head := o.state.Swap(doneMarker)
	for node := head; node != nil && node != self; {
		next := node.next.Load()
		for next == nil {
			// This node's publisher has linked it in (it's reachable
			// from head) but hasn't yet stored its next pointer;
			// spin until it does.
			xatomic.HardwarePause()
			next = node.next.Load()
		}
		node.sema.Signal()
		node = next
	}
}

// join runs as a goroutine that observed the site already occupied,
// either by a finished leader (Done) or an in-progress one (a waiter
// stack). It links itself onto the stack and blocks until the leader
// wakes it.
func (o *Once) join(self *onceWaiter) {
	sema := semacache.Get()
	self.sema = sema

	for {
		observed := o.state.Load()
		if observed == doneMarker {
			semacache.Put(sema)
			return
		}
		if o.state.CompareAndSwap(observed, self) {
			// Publish next only after winning the CAS: a concurrent
			// lead() may already be walking the stack and spinning on
			// this exact store.
			self.next.Store(observed)
			break
		}
		// Lost the race — another waiter linked first, or the leader
		// finished. Reload and re-decide.
	}

	sema.Wait(ksema.Forever)
	semacache.Put(sema)
}
