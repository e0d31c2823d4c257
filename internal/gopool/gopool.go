// Package gopool wraps a bounded ants/v2 goroutine pool behind the same
// Submit(func()) call the teacher's own common/gopool wrapper exposes
// (pair/pair.go: gopool.Submit(timerGetTriangle)). The engine uses it to
// dispatch request() calls to peers without spawning an unbounded number of
// goroutines when many jobs become dispatchable at once.
package gopool

import (
	"github.com/panjf2000/ants/v2"

	"github.com/ethfetch/headerpipe/log"
)

// DefaultCapacity bounds the number of concurrently running submitted tasks.
// It is generous relative to max_queue since each task is a single peer
// round trip, not CPU-bound work.
const DefaultCapacity = 256

var defaultPool = mustNewPool(DefaultCapacity)

func mustNewPool(size int) *ants.Pool {
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(r any) {
		log.Error("recovered panic in gopool task", "panic", r)
	}))
	if err != nil {
		panic(err)
	}
	return p
}

// Submit schedules fn to run on the shared pool, blocking briefly only if
// the pool is momentarily at capacity.
func Submit(fn func()) error {
	return defaultPool.Submit(fn)
}

// Pool wraps a dedicated ants.Pool for callers that want isolation from the
// package-level default pool (e.g. a test that wants to assert on
// concurrency bounds).
type Pool struct {
	inner *ants.Pool
}

// New creates a Pool with the given worker capacity.
func New(capacity int) (*Pool, error) {
	p, err := ants.NewPool(capacity)
	if err != nil {
		return nil, err
	}
	return &Pool{inner: p}, nil
}

// Submit schedules fn on this pool.
func (p *Pool) Submit(fn func()) error {
	return p.inner.Submit(fn)
}

// Release shuts the pool down; it does not wait for running tasks to finish.
func (p *Pool) Release() {
	p.inner.Release()
}

// Running returns the number of currently running goroutines in the pool.
func (p *Pool) Running() int {
	return p.inner.Running()
}
