package headerfetch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethfetch/headerpipe/fetcher"
)

// Config holds the header-fetch-specific construction options: the overall
// range to cover and how it's tiled into per-job requests (§4: "subclass
// options add first, count, max_per_request, reverse").
type Config struct {
	// First is the first block number to fetch.
	First *big.Int
	// Count is the total number of headers to fetch starting at First.
	Count int64
	// Reverse walks backward from First instead of forward.
	Reverse bool
	// MaxPerRequest bounds both how many headers one job's task asks for
	// and the minimum peer credit Request requires before dispatching
	// (§4.6).
	MaxPerRequest int
	// SafeReorgDistance bounds how far back a single reorg rewrites a
	// task's range in one step (§4.5).
	SafeReorgDistance int64
}

func (c Config) withDefaults() Config {
	if c.MaxPerRequest <= 0 {
		c.MaxPerRequest = 192
	}
	if c.SafeReorgDistance <= 0 {
		c.SafeReorgDistance = 64
	}
	return c
}

// Fetcher is the header specialization (C8): it implements fetcher.Hooks
// plus the three optional hooks (PeerSelector, TaskProducer, ReorgRewriter),
// and is the type plugged into fetcher.New as the Hooks argument.
type Fetcher struct {
	cfg    Config
	chain  Chain
	flow   FlowControl
	events Events

	cursor    *big.Int
	remaining int64
}

var (
	_ fetcher.Hooks[Task, Header, Reply] = (*Fetcher)(nil)
	_ fetcher.PeerSelector               = (*Fetcher)(nil)
	_ fetcher.TaskProducer[Task]         = (*Fetcher)(nil)
	_ fetcher.ReorgRewriter[Task]        = (*Fetcher)(nil)
)

// New builds a header Fetcher that, once handed to fetcher.New and run
// through Engine.Fetch, tiles [cfg.First, cfg.First+cfg.Count) (or, with
// cfg.Reverse, the cfg.Count blocks walking backward from cfg.First) into
// cfg.MaxPerRequest-sized jobs as the scheduler asks for more work.
func New(cfg Config, chain Chain, flow FlowControl, events Events) *Fetcher {
	if events == nil {
		events = NoopEvents{}
	}
	cfg = cfg.withDefaults()
	return &Fetcher{
		cfg:       cfg,
		chain:     chain,
		flow:      flow,
		events:    events,
		cursor:    new(big.Int).Set(cfg.First),
		remaining: cfg.Count,
	}
}

// NextTasks lazily tiles the remaining range, one job per call, advancing
// the cursor by MaxPerRequest (or whatever's left) each time.
func (f *Fetcher) NextTasks() []Task {
	if f.remaining <= 0 {
		return nil
	}
	n := int64(f.cfg.MaxPerRequest)
	if n > f.remaining {
		n = f.remaining
	}
	task := Task{First: new(big.Int).Set(f.cursor), Count: int(n), Reverse: f.cfg.Reverse}
	step := big.NewInt(n)
	if f.cfg.Reverse {
		f.cursor = new(big.Int).Sub(f.cursor, step)
	} else {
		f.cursor = new(big.Int).Add(f.cursor, step)
	}
	f.remaining -= n
	return []Task{task}
}

// Peer restricts idle-peer selection to header-serving peers (§4.1).
func (f *Fetcher) Peer(pool fetcher.PeerPool) (fetcher.Peer, bool) {
	return pool.Idle(func(p fetcher.Peer) bool {
		hp, ok := p.(Peer)
		return ok && hp.ServeHeaders()
	})
}

// Request consults flow control before dispatching, and requests only the
// remainder of a job's range if a prior partial reply already covered a
// prefix of it (§4.6).
func (f *Fetcher) Request(ctx context.Context, job *fetcher.Job[Task, Header], peer fetcher.Peer) (Reply, bool, error) {
	hp, ok := peer.(Peer)
	if !ok {
		return Reply{}, false, fmt.Errorf("headerfetch: peer %s does not serve headers", peer.ID())
	}
	if f.flow.MaxRequestCount(peer, "GetBlockHeaders") < f.cfg.MaxPerRequest {
		return Reply{}, false, nil // no credit right now: re-queue with a different peer
	}
	first, count := f.pendingRange(job)
	reply, err := hp.RequestHeaders(ctx, first, count, job.Task.Reverse)
	if err != nil {
		return Reply{}, false, err
	}
	if len(reply.Headers) == 0 {
		// Treat a zero-header reply the same as no reply at all, so the
		// engine routes it through its empty/missing-reply path (requeue
		// plus the delayed peer release) instead of marking the peer idle
		// immediately.
		return Reply{}, false, nil
	}
	return reply, true, nil
}

// pendingRange returns the sub-range still owed for job, accounting for any
// prefix already recorded in job.Partial from an earlier partial reply.
func (f *Fetcher) pendingRange(job *fetcher.Job[Task, Header]) (*big.Int, int) {
	done := len(job.Partial)
	count := job.Task.Count - done
	if done == 0 {
		return job.Task.First, count
	}
	delta := big.NewInt(int64(done))
	first := new(big.Int)
	if job.Task.Reverse {
		first.Sub(job.Task.First, delta)
	} else {
		first.Add(job.Task.First, delta)
	}
	return first, count
}

// Process folds reply into job's accumulated result and reports whether the
// task's full count has now been satisfied (§4.3).
func (f *Fetcher) Process(job *fetcher.Job[Task, Header], reply Reply) ([]Header, bool) {
	f.flow.HandleReply(job.Peer, reply.BV)
	if len(reply.Headers) == 0 {
		return nil, false
	}
	combined := reply.Headers
	if len(job.Partial) > 0 {
		combined = append(append([]Header{}, job.Partial...), reply.Headers...)
	}
	if len(combined) < job.Task.Count {
		job.Partial = combined
		return nil, false
	}
	return combined[:job.Task.Count], true
}

// Store writes items through to the chain and emits FetchedHeaders for
// exactly the prefix actually accepted (§4.4).
func (f *Fetcher) Store(items []Header) error {
	accepted, err := f.chain.PutHeaders(items)
	if err != nil {
		return err
	}
	if accepted > 0 {
		f.events.FetchedHeaders(items[:accepted])
	}
	return nil
}

// RewriteForReorg rewinds task by min(first-1, SafeReorgDistance) blocks and
// grows its count by the same amount (§4.5). ok=false once First has reached
// block 1 and cannot be rewound any further.
func (f *Fetcher) RewriteForReorg(task Task) (Task, bool) {
	one := big.NewInt(1)
	if task.First.Cmp(one) <= 0 {
		return Task{}, false
	}
	maxBack := new(big.Int).Sub(task.First, one)
	safe := big.NewInt(f.cfg.SafeReorgDistance)
	stepBack := maxBack
	if maxBack.Cmp(safe) > 0 {
		stepBack = safe
	}
	newFirst := new(big.Int).Sub(task.First, stepBack)
	newCount := task.Count + int(stepBack.Int64())
	return Task{First: newFirst, Count: newCount, Reverse: task.Reverse}, true
}
