package fetcher

import "github.com/ethfetch/headerpipe/internal/prque"

// queues is the Ordered Queues component (C2): two min-heaps keyed by job
// index. inbound holds jobs awaiting dispatch; outbound holds completed jobs
// awaiting contiguous emission to the sink. Neither heap deduplicates;
// callers guarantee unique indices by construction (invariant §3.1).
type queues[T any, I any] struct {
	inbound  *prque.Prque[int, *Job[T, I]]
	outbound *prque.Prque[int, *Job[T, I]]
}

func newQueues[T any, I any]() *queues[T, I] {
	return &queues[T, I]{
		inbound:  prque.New[int, *Job[T, I]](),
		outbound: prque.New[int, *Job[T, I]](),
	}
}

func (q *queues[T, I]) pushInbound(j *Job[T, I])  { q.inbound.Push(j, j.Index) }
func (q *queues[T, I]) pushOutbound(j *Job[T, I]) { q.outbound.Push(j, j.Index) }

func (q *queues[T, I]) peekInbound() (*Job[T, I], bool) {
	if q.inbound.Empty() {
		return nil, false
	}
	j, _ := q.inbound.Peek()
	return j, true
}

func (q *queues[T, I]) popInbound() *Job[T, I] { return q.inbound.PopItem() }

func (q *queues[T, I]) peekOutbound() (*Job[T, I], bool) {
	if q.outbound.Empty() {
		return nil, false
	}
	j, _ := q.outbound.Peek()
	return j, true
}

func (q *queues[T, I]) popOutbound() *Job[T, I] { return q.outbound.PopItem() }

func (q *queues[T, I]) inboundLen() int { return q.inbound.Size() }

// clearInbound discards all undispatched work, returning how many jobs were
// dropped, so the caller can lower total accordingly (§4.7: irrecoverable
// failure clears inbound).
func (q *queues[T, I]) clearInbound() int {
	n := q.inbound.Size()
	q.inbound.Reset()
	return n
}
