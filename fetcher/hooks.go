package fetcher

import "context"

// Hooks is the subclass contract from §6: the three calls the engine makes
// into type-specific code. T is the task descriptor, I the storage item
// type, R the raw reply type returned by Request.
//
// This is the Go-generics rendering of what the source expresses through
// inheritance (§9): one engine, type-parameterized over the task/result/item
// triple, rather than a base class subclassed per artifact kind.
type Hooks[T any, I any, R any] interface {
	// Request issues the sub-request for job to peer and blocks until a
	// reply arrives, ctx is canceled, or the engine's own per-job timeout
	// fires (in which case Request should return promptly once ctx is
	// done). ok=false means "no reply" (§6: None ⇒ re-queue job).
	Request(ctx context.Context, job *Job[T, I], peer Peer) (reply R, ok bool, err error)

	// Process normalizes reply into the ordered storage items for job.
	// ok=true means items is the final, complete result for the task
	// (§4.3): items already includes any prior Partial, and its length
	// equals the task's intended count. ok=false means either a partial result was
	// recorded on job.Partial (re-queue to fetch the remainder) or the
	// reply was malformed (re-queue with no partial update).
	Process(job *Job[T, I], reply R) (items []I, ok bool)

	// Store persists items, already known to be contiguous and in order
	// relative to every prior Store call. An error for which IsReorgHint
	// is true is recoverable when the hooks also implement ReorgRewriter
	// and the task can still be rewound; any other error stops the engine,
	// whether or not it is wrapped with Irrecoverable.
	Store(items []I) error
}

// PeerSelector is an optional hook (§6): a Hooks implementation may
// implement it to override idle-peer selection with a capability
// predicate, the way the header specialization only accepts peers whose
// serve_headers flag is set. Absent this interface, the engine calls
// pool.Idle(nil).
type PeerSelector interface {
	Peer(pool PeerPool) (Peer, bool)
}

// TaskProducer is an optional hook (§6): a Hooks implementation may
// implement it to lazily generate more tasks during the scheduling loop
// (next_tasks). Absent this interface, all tasks must be supplied up front
// via Engine.EnqueueTask.
type TaskProducer[T any] interface {
	NextTasks() []T
}

// ReorgRewriter is an optional hook a Hooks implementation may provide to
// let the generic Storage Sink (C6) rewind a task on a reorg signal
// (§4.5/§7 ReorgHint) without the engine knowing anything about the task's
// shape. ok=false means the task cannot be rewound any further (e.g. already
// at genesis), in which case the engine treats the store error as
// irrecoverable instead.
type ReorgRewriter[T any] interface {
	RewriteForReorg(task T) (rewritten T, ok bool)
}
