package dispatch

import "github.com/veezhang/godispatch/internal/contcache"

// Queue runs a thunk at some later time. The group never runs
// notification thunks itself; it only hands them to a Queue.
type Queue = contcache.Queue

// GoQueue is the minimal concrete Queue this module ships: it runs each
// enqueued thunk on its own goroutine, the natural Go analogue of a
// libdispatch concurrent queue. The library itself owns no worker
// pool, so Group.Notify needs at least one concrete Queue to be
// exercisable without callers bringing their own scheduler.
type GoQueue struct {
	name string
}

// NewGoQueue returns a GoQueue identified by name. The name is stored on
// the queue and is not read or logged by this package.
func NewGoQueue(name string) *GoQueue {
	return &GoQueue{name: name}
}

// Enqueue runs fn on a new goroutine.
func (q *GoQueue) Enqueue(fn func()) {
	go fn()
}

// SerialGoQueue runs every enqueued thunk on one dedicated goroutine, in
// submission order — the analogue of a libdispatch serial queue.
type SerialGoQueue struct {
	name string
	jobs chan func()
	done chan struct{}
}

// NewSerialGoQueue starts the worker goroutine that drains jobs in
// order. Callers should not reuse a SerialGoQueue after Close.
func NewSerialGoQueue(name string) *SerialGoQueue {
	q := &SerialGoQueue{
		name: name,
		jobs: make(chan func(), 64),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *SerialGoQueue) run() {
	defer close(q.done)
	for fn := range q.jobs {
		fn()
	}
}

// Enqueue submits fn to run after every previously-enqueued thunk on
// this queue has completed.
func (q *SerialGoQueue) Enqueue(fn func()) {
	q.jobs <- fn
}

// Close stops accepting new work and waits for the queue to drain.
// Calling Close again after it has returned is a no-op.
func (q *SerialGoQueue) Close() {
	select {
	case <-q.done:
		return // already closed and drained
	default:
	}
	close(q.jobs)
	<-q.done
}
