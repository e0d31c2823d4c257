// Package fetcher implements the generic pipelined peer-fetch engine: C1–C7
// of the design (Job Model, Ordered Queues, Scheduler, Result Assembler,
// Emit Pipeline, Storage Sink, Failure Controller). The concrete header
// specialization (C8) lives in package headerfetch and plugs in through the
// Hooks contract.
package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/ethfetch/headerpipe/internal/gopool"
	"github.com/ethfetch/headerpipe/internal/prque"
	"github.com/ethfetch/headerpipe/log"
	"github.com/ethfetch/headerpipe/metrics"
)

// Engine is the generic fetch engine. T is the task descriptor, I the
// storage item type, R the raw reply type Hooks.Request returns.
//
// The teacher's concurrentFetch runs as a single goroutine multiplexing a
// handful of channels in one select loop (peer replies, timeouts, peering
// events, a continuation waker). Engine keeps that shape: one owning
// goroutine runs the scheduler/assembler/emit/failure-controller logic
// (dispatchTick and the handle* methods below), and a second, dedicated
// goroutine runs the single-consumer Storage Sink, the two communicating
// over bounded channels so that backpressure from the sink throttles
// dispatch; the sink goroutine itself takes no lock. The queues and
// counters are guarded by a mutex, which the owning goroutine takes for
// each short state change, because EnqueueTask, Progress and Err may be
// called from other goroutines while Fetch runs.
type Engine[T any, I any, R any] struct {
	cfg    Config
	pool   PeerPool
	hooks  Hooks[T, I, R]
	events Events
	reg    *metrics.Registry

	peerSelector  PeerSelector
	taskProducer  TaskProducer[T]
	reorgRewriter ReorgRewriter[T]

	mu        sync.Mutex
	q         *queues[T, I]
	nextIndex int
	total     int
	processed int
	finished  int
	running   bool
	errored   error

	inFlightSink int
	timeouts     *prque.Prque[int64, timeoutEntry[T, I]]

	ctx          context.Context
	wake         chan struct{}
	resultsCh    chan reqOutcome[T, I, R]
	sinkCh       chan *Job[T, I]
	sinkResultCh chan storeOutcome[T, I]
	releaseCh    chan Peer
	loopDone     chan struct{}
	timeoutTimer *time.Timer
}

type timeoutEntry[T any, I any] struct {
	job   *Job[T, I]
	epoch int
}

type reqOutcome[T any, I any, R any] struct {
	job   *Job[T, I]
	epoch int
	peer  Peer
	reply R
	ok    bool
	err   error
}

type storeOutcome[T any, I any] struct {
	job *Job[T, I]
	err error
}

// New constructs an Engine. events may be nil, in which case NoopEvents is
// used; reg may be nil, in which case a private registry is allocated.
func New[T any, I any, R any](cfg Config, pool PeerPool, hooks Hooks[T, I, R], events Events, reg *metrics.Registry) *Engine[T, I, R] {
	if events == nil {
		events = NoopEvents{}
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	e := &Engine[T, I, R]{
		cfg:    cfg.withDefaults(),
		pool:   pool,
		hooks:  hooks,
		events: events,
		reg:    reg,
		q:      newQueues[T, I](),
	}
	if ps, ok := hooks.(PeerSelector); ok {
		e.peerSelector = ps
	}
	if tp, ok := hooks.(TaskProducer[T]); ok {
		e.taskProducer = tp
	}
	if rr, ok := hooks.(ReorgRewriter[T]); ok {
		e.reorgRewriter = rr
	}
	return e
}

// EnqueueTask assigns the next dense index to task and places it in the
// inbound queue. Safe to call before Fetch, and concurrently with a running
// Fetch (the producer described in §2's control-flow overview).
func (e *Engine[T, I, R]) EnqueueTask(task T) int {
	e.mu.Lock()
	idx := e.nextIndex
	e.nextIndex++
	e.total++
	job := &Job[T, I]{Index: idx, Task: task, State: StateIdle, Time: time.Now()}
	e.q.pushInbound(job)
	e.mu.Unlock()
	e.wakeUp()
	return idx
}

// Progress reports the current processed/finished/total counters (§3.3,
// §8.3), primarily for tests and metrics dashboards.
func (e *Engine[T, I, R]) Progress() (processed, finished, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processed, e.finished, e.total
}

// Err returns the irrecoverable error that stopped the engine, if any.
func (e *Engine[T, I, R]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errored
}

// Fetch runs the engine to completion (§4.2's fetch()): it returns nil once
// every enqueued job has been successfully stored and DestroyWhenDone is
// set, ctx.Err() if the context was canceled, or the first irrecoverable
// error surfaced by the Store/Request hooks.
func (e *Engine[T, I, R]) Fetch(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.errored = nil
	e.mu.Unlock()

	e.ctx = ctx
	e.wake = make(chan struct{}, 1)
	e.resultsCh = make(chan reqOutcome[T, I, R])
	e.sinkCh = make(chan *Job[T, I], e.cfg.MaxQueue)
	e.sinkResultCh = make(chan storeOutcome[T, I])
	e.releaseCh = make(chan Peer)
	e.loopDone = make(chan struct{})
	e.timeouts = prque.New[int64, timeoutEntry[T, I]]()
	e.timeoutTimer = time.NewTimer(time.Hour)
	if !e.timeoutTimer.Stop() {
		<-e.timeoutTimer.C
	}

	var sinkWG sync.WaitGroup
	sinkWG.Add(1)
	go func() {
		defer sinkWG.Done()
		e.runSink()
	}()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.dispatchTick()
loop:
	for {
		select {
		case <-ctx.Done():
			e.failIrrecoverable(ctxErr(ctx), nil)
		case <-e.wake:
			e.dispatchTick()
		case <-ticker.C:
			e.dispatchTick()
		case out := <-e.resultsCh:
			e.handleResult(out)
		case <-e.timeoutTimer.C:
			e.handleTimeoutFire()
		case so := <-e.sinkResultCh:
			e.handleStoreOutcome(so)
		case p := <-e.releaseCh:
			p.SetIdle(true)
			e.dispatchTick()
		}
		e.mu.Lock()
		stillRunning := e.running
		e.mu.Unlock()
		if !stillRunning {
			break loop
		}
	}

	close(e.loopDone)
	e.timeoutTimer.Stop()
	sinkWG.Wait()

	return e.Err()
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrCanceled
}

func (e *Engine[T, I, R]) wakeUp() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// dispatchTick is the Scheduler's next() step (§4.2): it drains next_tasks,
// then dispatches as many inbound jobs to idle peers as backpressure, the
// in-flight window, and peer availability allow, stopping as soon as any of
// those gates block.
func (e *Engine[T, I, R]) dispatchTick() {
	if e.taskProducer != nil {
		for _, t := range e.taskProducer.NextTasks() {
			e.EnqueueTask(t)
		}
	}
	for {
		e.mu.Lock()
		job, ok := e.q.peekInbound()
		if !ok {
			allDone := e.finished == e.total
			e.mu.Unlock()
			if allDone && e.cfg.DestroyWhenDone {
				e.mu.Lock()
				e.running = false
				e.mu.Unlock()
			}
			return
		}
		if e.inFlightSink >= e.cfg.MaxQueue {
			e.mu.Unlock()
			e.reg.Throttled.Inc(1)
			return
		}
		if job.Index > e.processed+e.cfg.MaxQueue {
			// "Job index greater than processed + max queue size": the
			// in-flight window is full; wait for processed to advance.
			e.mu.Unlock()
			log.Debug("job index beyond in-flight window, waiting", "index", job.Index, "processed", e.processed)
			return
		}
		var (
			peer Peer
			got  bool
		)
		if e.peerSelector != nil {
			peer, got = e.peerSelector.Peer(e.pool)
		} else {
			peer, got = e.pool.Idle(nil)
		}
		if !got {
			e.mu.Unlock()
			return
		}
		e.q.popInbound()
		peer.SetIdle(false)
		job.State = StateActive
		job.Peer = peer
		job.Time = time.Now()
		job.epoch++
		epoch := job.epoch
		e.mu.Unlock()

		e.armTimeout(job, epoch)
		e.dispatchRequest(job, epoch, peer)
	}
}

func (e *Engine[T, I, R]) dispatchRequest(job *Job[T, I], epoch int, peer Peer) {
	err := gopool.Submit(func() {
		reqCtx, cancel := context.WithTimeout(e.ctx, e.cfg.Timeout)
		defer cancel()
		reply, ok, err := e.hooks.Request(reqCtx, job, peer)
		select {
		case e.resultsCh <- reqOutcome[T, I, R]{job: job, epoch: epoch, peer: peer, reply: reply, ok: ok, err: err}:
		case <-e.loopDone:
		}
	})
	if err != nil {
		// Pool saturated/closed: dispatchRequest runs on the owning
		// goroutine itself, so route this like a request error directly
		// through the Failure Controller rather than round-tripping
		// through resultsCh, which would deadlock against this same
		// goroutine.
		e.failureController([]*Job[T, I]{job}, err, false, false, peer)
	}
}

func (e *Engine[T, I, R]) armTimeout(job *Job[T, I], epoch int) {
	deadline := time.Now().Add(e.cfg.Timeout).UnixNano()
	e.mu.Lock()
	e.timeouts.Push(timeoutEntry[T, I]{job: job, epoch: epoch}, deadline)
	_, earliest := e.timeouts.Peek()
	e.mu.Unlock()
	e.resetTimeoutTimer(earliest)
}

func (e *Engine[T, I, R]) resetTimeoutTimer(deadlineNano int64) {
	if !e.timeoutTimer.Stop() {
		select {
		case <-e.timeoutTimer.C:
		default:
		}
	}
	d := time.Until(time.Unix(0, deadlineNano))
	if d < 0 {
		d = 0
	}
	e.timeoutTimer.Reset(d)
}

// handleResult is the Result Assembler (C4).
func (e *Engine[T, I, R]) handleResult(out reqOutcome[T, I, R]) {
	job := out.job
	e.mu.Lock()
	stale := job.State != StateActive || job.epoch != out.epoch
	e.mu.Unlock()
	if stale {
		return // job expired or was already resolved: drop silently
	}

	if out.err != nil {
		e.failureController([]*Job[T, I]{job}, out.err, IsIrrecoverable(out.err), false, out.peer)
		return
	}
	if !out.ok {
		log.Debug("empty or missing reply, re-enqueueing", "index", job.Index, "peer", out.peer.ID())
		e.requeue(job)
		e.releaseAfterInterval(out.peer)
		e.wakeUp()
		return
	}

	out.peer.SetIdle(true)
	e.wakeUp()

	items, complete := e.hooks.Process(job, out.reply)
	if !complete {
		e.requeue(job)
		e.wakeUp()
		return
	}

	job.Result = items
	job.Partial = nil
	e.mu.Lock()
	job.State = StateOutbound
	e.q.pushOutbound(job)
	e.mu.Unlock()
	e.emit()
}

func (e *Engine[T, I, R]) requeue(job *Job[T, I]) {
	e.reg.Requeued.Inc(1)
	e.mu.Lock()
	job.reset()
	e.q.pushInbound(job)
	e.mu.Unlock()
}

func (e *Engine[T, I, R]) releaseAfterInterval(peer Peer) {
	time.AfterFunc(e.cfg.Interval, func() {
		select {
		case e.releaseCh <- peer:
		case <-e.loopDone:
		}
	})
}

// emit is the Emit Pipeline (C5): it drains outbound in strictly ascending
// index order into the sink channel, stopping as soon as the in-flight
// sink window (max_queue) is full.
func (e *Engine[T, I, R]) emit() {
	for {
		e.mu.Lock()
		if e.inFlightSink >= e.cfg.MaxQueue {
			e.mu.Unlock()
			return
		}
		job, ok := e.q.peekOutbound()
		if !ok || job.Index > e.processed {
			e.mu.Unlock()
			return
		}
		e.q.popOutbound()
		e.processed++
		e.inFlightSink++
		e.mu.Unlock()
		e.reg.Processed.Inc(1)

		select {
		case e.sinkCh <- job:
		case <-e.loopDone:
			return
		}
	}
}

// runSink is the Storage Sink's single consumer goroutine (C6).
func (e *Engine[T, I, R]) runSink() {
	for {
		select {
		case job, ok := <-e.sinkCh:
			if !ok {
				return
			}
			err := e.hooks.Store(job.Result)
			select {
			case e.sinkResultCh <- storeOutcome[T, I]{job: job, err: err}:
			case <-e.loopDone:
				return
			}
		case <-e.loopDone:
			return
		}
	}
}

func (e *Engine[T, I, R]) handleStoreOutcome(so storeOutcome[T, I]) {
	e.mu.Lock()
	e.inFlightSink--
	e.mu.Unlock()

	if so.err == nil {
		e.mu.Lock()
		e.finished++
		e.mu.Unlock()
		e.reg.Finished.Inc(1)
		e.emit()
		e.wakeUp()
		return
	}

	if e.reorgRewriter != nil && IsReorgHint(so.err) {
		if rewritten, ok := e.reorgRewriter.RewriteForReorg(so.job.Task); ok {
			so.job.Task = rewritten
			so.job.Partial = nil
			so.job.Result = nil
			e.mu.Lock()
			e.processed-- // dequeued=true: this job had already counted as emitted
			so.job.reset()
			e.q.pushInbound(so.job)
			e.mu.Unlock()
			e.reg.Reorgs.Inc(1)
			e.reg.Requeued.Inc(1)
			if e.isRunning() {
				e.events.FetcherError(so.err, so.job.Peer)
			}
			e.wakeUp()
			return
		}
	}
	e.failIrrecoverable(so.err, so.job.Peer)
}

// handleTimeoutFire pops the earliest-armed timeout; if it belongs to a job
// that already resolved or was re-dispatched under a newer epoch, it's a
// stale heap entry left behind by lazy deletion and is discarded silently
// (this, together with the epoch check, is what keeps a concurrent
// resolution of an expired job's original request from racing with its
// subsequent re-dispatch — see DESIGN.md).
func (e *Engine[T, I, R]) handleTimeoutFire() {
	e.mu.Lock()
	if e.timeouts.Empty() {
		e.mu.Unlock()
		return
	}
	entry, deadline := e.timeouts.Pop()
	now := time.Now().UnixNano()
	if deadline > now {
		// Spurious/early firing; push back and reschedule.
		e.timeouts.Push(entry, deadline)
		_, next := e.timeouts.Peek()
		e.mu.Unlock()
		e.resetTimeoutTimer(next)
		return
	}
	job, epoch := entry.job, entry.epoch
	stale := job.State != StateActive || job.epoch != epoch
	var nextDeadline int64
	hasNext := !e.timeouts.Empty()
	if hasNext {
		_, nextDeadline = e.timeouts.Peek()
	}
	e.mu.Unlock()

	if hasNext {
		e.resetTimeoutTimer(nextDeadline)
	}
	if stale {
		return
	}
	e.expire(job, epoch)
}

func (e *Engine[T, I, R]) expire(job *Job[T, I], epoch int) {
	e.mu.Lock()
	if job.State != StateActive || job.epoch != epoch {
		e.mu.Unlock()
		return
	}
	job.State = StateExpired
	peer := job.Peer
	e.mu.Unlock()

	e.reg.Timeouts.Inc(1)
	if peer != nil && e.pool.Contains(peer) {
		e.pool.Ban(peer, e.cfg.BanTime)
		e.reg.Banned.Inc(1)
	}
	e.requeue(job)
	if e.isRunning() {
		e.events.FetcherError(ErrTimeout, peer)
	}
	e.wakeUp()
}

// failureController is the generic Failure Controller (C7) for recoverable
// and irrecoverable request/assembly errors.
func (e *Engine[T, I, R]) failureController(jobs []*Job[T, I], err error, irrecoverable bool, dequeued bool, primaryPeer Peer) {
	if irrecoverable {
		e.failIrrecoverable(err, primaryPeer)
		return
	}
	if primaryPeer != nil {
		e.releaseAfterInterval(primaryPeer)
	}
	e.mu.Lock()
	for _, j := range jobs {
		if j.State == StateActive || j.State == StateExpired {
			if dequeued {
				e.processed--
			}
			j.reset()
			e.q.pushInbound(j)
		}
	}
	e.mu.Unlock()
	e.reg.Requeued.Inc(int64(len(jobs)))
	if e.isRunning() {
		e.events.FetcherError(err, primaryPeer)
	}
	e.wakeUp()
}

func (e *Engine[T, I, R]) failIrrecoverable(err error, primaryPeer Peer) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	if primaryPeer != nil {
		e.pool.Ban(primaryPeer, e.cfg.BanTime)
		e.reg.Banned.Inc(1)
	}
	e.errored = err
	e.running = false
	dropped := e.q.clearInbound()
	e.total -= dropped
	e.mu.Unlock()
	e.events.FetcherError(err, primaryPeer)
	e.wakeUp()
}

func (e *Engine[T, I, R]) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
