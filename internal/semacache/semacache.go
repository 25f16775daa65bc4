// Package semacache is a per-caller cache of OS wake primitives, so the
// one-shot initializer's slow path does not allocate a fresh kernel
// handle for every waiter.
//
// Go has no user-addressable OS thread the way the originating library
// does; goroutines are multiplexed over OS threads by the scheduler. The
// closest faithful translation of a per-thread free list is the same
// mechanism the standard library itself uses to amortize allocation
// under concurrent, independent callers: a sync.Pool, adapted here to
// recycle ksema.Handle values instead of byte buffers.
package semacache

import (
	"sync"

	"github.com/veezhang/godispatch/internal/ksema"
)

var pool = sync.Pool{
	New: func() interface{} {
		return ksema.New()
	},
}

// Get returns a handle from the cache, allocating a new kernel primitive
// only if the cache is empty.
func Get() ksema.Handle {
	return pool.Get().(ksema.Handle)
}

// Put returns a handle to the cache for reuse by a later waiter. The
// caller must not touch the handle again afterward.
func Put(h ksema.Handle) {
	pool.Put(h)
}
