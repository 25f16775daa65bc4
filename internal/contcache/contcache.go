// Package contcache is a pool of fixed-shape notification records used
// by the group's notify queue, recycled instead of freshly allocated on
// every call.
//
// Modeled on sync.Pool's own victim-cache design, specialized from its
// generic interface{} payload down to the one fixed record shape the
// group notification list needs: {next, queue, fn}.
package contcache

import (
	"sync"
	"sync/atomic"
)

// Queue is the external async-enqueue collaborator a notification
// targets: it runs fn at some later time.
type Queue interface {
	Enqueue(fn func())
}

// Record is a notification record: target queue, the thunk to run, and
// the intrusive `next` link used by the group's singly-linked notify
// list. Ownership starts with Notify, passes to the group's list, and
// returns here on Put once the wake walk has consumed it.
//
// Next is published by the producer strictly after the record has
// already been linked in via the tail exchange (see dispatch.Group.Notify),
// so a consumer walking the list may briefly observe a nil Next on a
// node it knows has a successor; it must spin until the store lands.
type Record struct {
	Next  atomic.Pointer[Record]
	Queue Queue
	Fn    func()
}

var pool = sync.Pool{
	New: func() interface{} { return &Record{} },
}

// Get returns a zeroed Record, allocating only if the cache is empty.
func Get() *Record {
	r := pool.Get().(*Record)
	r.Next.Store(nil)
	r.Queue, r.Fn = nil, nil
	return r
}

// Put recycles a Record once its Fn has been handed to its Queue.
func Put(r *Record) {
	r.Next.Store(nil)
	r.Queue, r.Fn = nil, nil
	pool.Put(r)
}
