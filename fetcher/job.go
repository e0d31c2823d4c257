package fetcher

import "time"

// State is a job's position in the lifecycle described by §4.8 of the
// design: idle -> active -> (expired | outbound) -> idle (on re-enqueue).
type State int

const (
	// StateIdle jobs sit in the inbound heap awaiting dispatch.
	StateIdle State = iota
	// StateActive jobs are assigned to a peer with a timeout armed.
	StateActive
	// StateExpired jobs timed out; any late reply for them is dropped.
	StateExpired
	// StateOutbound jobs completed and are awaiting contiguous emission to
	// the sink (invariant §3.2: a job lives in at most one of
	// {inbound, outbound, in-flight, in-sink} at a time).
	StateOutbound
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Job is the unit of concurrency (C1). T is the subclass-defined task
// descriptor (e.g. a block range); I is the storage item type the task
// eventually resolves to (e.g. a header).
//
// Index is assigned once by the engine at enqueue time and never changes;
// it is the sole ordering key for both queues and for delivery to the sink
// (invariants §3.1, §3.4).
type Job[T any, I any] struct {
	Index   int
	Task    T
	State   State
	Peer    Peer
	Time    time.Time
	Partial []I // accumulated prefix from prior partial replies
	Result  []I // populated only once the job reaches outbound

	// epoch increments on every dispatch and is captured by the timeout
	// entry and the request outcome armed for that dispatch. A late
	// resolution (timeout fire or reply) for a stale epoch is a leftover
	// from a dispatch this job has since moved past — possible once the
	// job has been re-dispatched under a new epoch — and is dropped
	// rather than applied (resolves the race between a late resolution
	// and the job's subsequent re-dispatch; see DESIGN.md).
	epoch int
}

// reset returns a job to idle ahead of re-dispatch, preserving Index,
// Task and Partial so a re-enqueued job keeps its emit slot and does not
// lose progress already made on its task (§5 ordering guarantees).
func (j *Job[T, I]) reset() {
	j.State = StateIdle
	j.Peer = nil
	j.Time = time.Now()
}
