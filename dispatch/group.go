package dispatch

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/veezhang/godispatch/internal/contcache"
	"github.com/veezhang/godispatch/internal/ksema"
	"github.com/veezhang/godispatch/internal/xatomic"
)

// Group tracks a set of in-flight work items: a Semaphore specialization
// whose initial value is math.MaxInt64. Quiescence (value back at
// MaxInt64) wakes Wait callers and enqueues any registered
// notifications.
//
// A Group must not be copied after first use.
type Group struct {
	sem          Semaphore
	groupWaiters xatomic.Int64
	notifyHead   atomic.Pointer[contcache.Record]
	notifyTail   atomic.Pointer[contcache.Record]
}

// NewGroup returns a quiescent group.
func NewGroup() *Group {
	g := &Group{}
	g.sem.orig = math.MaxInt64
	g.sem.value.StoreRelaxed(math.MaxInt64)
	return g
}

// Enter records one more in-flight work item.
func (g *Group) Enter() {
	if v := g.sem.value.AddAcquire(-1); v < 0 {
		abort("over-entered group", zap.Int64("value", v))
	}
}

// Leave records that one in-flight work item finished. If this was the
// last outstanding item, it wakes any Wait callers and runs registered
// notifications.
func (g *Group) Leave() {
	v := g.sem.value.AddRelease(1)
	if v < 0 {
		// math.MaxInt64 + 1 wraps to math.MinInt64, which is < 0; a
		// double Leave on an already-quiescent group always lands here.
		abort("unbalanced leave", zap.Int64("value", v))
	}
	if v == math.MaxInt64 {
		g.wake()
	}
}

// wake releases every blocked Wait caller and hands every pending
// notification to its queue. Internal; called with the group known
// quiescent.
func (g *Group) wake() {
	head := g.notifyHead.Swap(nil)
	var tail *contcache.Record
	if head != nil {
		tail = g.notifyTail.Swap(nil)
	}

	// group-wait blockers share the same kernel handle as any other
	// Semaphore waiter, so releasing n of them is just n Signal calls.
	for n := g.groupWaiters.Swap(0); n > 0; n-- {
		g.sem.ensureHandle().Signal()
	}

	// Walk the captured list. tail tells a genuinely-final node (whose
	// Next is nil forever) apart from a node whose Next hasn't been
	// published yet by a concurrent Notify — only the latter needs the
	// hardware-pause spin below.
	for rec := head; rec != nil; {
		var next *contcache.Record
		if rec != tail {
			next = rec.Next.Load()
			for next == nil {
				xatomic.HardwarePause()
				next = rec.Next.Load()
			}
		}
		fn, queue := rec.Fn, rec.Queue
		contcache.Put(rec)
		queue.Enqueue(fn)
		rec = next
	}
}

// Wait blocks until the group is quiescent (all Enter calls have a
// matching Leave) or deadline passes.
func (g *Group) Wait(deadline ksema.Deadline) error {
	if g.sem.value.LoadRelaxed() == math.MaxInt64 {
		return nil
	}
	if deadline == ksema.Immediate {
		return ErrTimeout
	}

	for {
		if g.sem.value.LoadRelaxed() == math.MaxInt64 {
			g.wake()
			return nil
		}
		g.groupWaiters.AddRelaxed(1)
		if g.sem.value.LoadRelaxed() == math.MaxInt64 {
			// Closed the window between the check above and registering
			// as a waiter: run the full wake ourselves rather than just
			// undoing our own registration, so any other waiter or
			// notification already pending is not stranded.
			g.wake()
			return nil
		}
		h := g.sem.ensureHandle()
		if h.Wait(deadline) == ksema.Ok {
			continue
		}
		if g.undoGroupWaiter() {
			return ErrTimeout
		}
		// Lost the race to a concurrent wake; loop back and re-check.
	}
}

func (g *Group) undoGroupWaiter() bool {
	for {
		cur := g.groupWaiters.LoadRelaxed()
		if cur <= 0 {
			return false
		}
		if g.groupWaiters.CompareAndSwapRelaxed(cur, cur-1) {
			return true
		}
	}
}

// Notify registers fn to run on queue once the group next becomes
// quiescent. Notifications for the same group run in the order they
// were registered.
func (g *Group) Notify(queue Queue, fn func()) {
	rec := contcache.Get()
	rec.Queue, rec.Fn = queue, fn

	prevTail := g.notifyTail.Swap(rec)
	if prevTail != nil {
		prevTail.Next.Store(rec)
		return
	}

	// rec is the first record in the list.
	g.notifyHead.Store(rec)
	xatomic.MaximallySynchronizingBarrier()

	// The group may have gone quiescent between the swap above and this
	// check, in which case the Leave that did it already ran wake()
	// and found an empty list — wake it again ourselves so the
	// notification is not lost.
	if g.sem.value.LoadRelaxed() == math.MaxInt64 {
		g.wake()
	}
}
