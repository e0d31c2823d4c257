// Package peerpool is a concrete, in-memory PeerPool/Peer implementation —
// the external collaborator fetcher.Engine and headerfetch.Fetcher are built
// against, but never depend on directly. It exists to make the engine
// runnable end to end (demos, integration tests) without a real devp2p
// transport.
package peerpool

import (
	"context"
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/ethfetch/headerpipe/headerfetch"
)

// Wire is the narrow transport boundary a real devp2p peer would implement;
// Pool wraps it with idle tracking, rate limiting and a ban list.
type Wire interface {
	ID() string
	ServeHeaders() bool
	RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (headerfetch.Reply, error)
}

// Peer is a Wire wrapped with the idle flag and per-peer rate limiter the
// Pool manages. It satisfies both fetcher.Peer and headerfetch.Peer.
type Peer struct {
	Wire

	mu      sync.Mutex
	idle    bool
	limiter *rate.Limiter
}

func newPeer(w Wire, limiter *rate.Limiter) *Peer {
	return &Peer{Wire: w, idle: true, limiter: limiter}
}

func (p *Peer) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

func (p *Peer) SetIdle(idle bool) {
	p.mu.Lock()
	p.idle = idle
	p.mu.Unlock()
}

// RequestHeaders rate-limits outgoing requests per peer on top of the
// wrapped Wire call, so one misconfigured collaborator can't hammer a single
// remote peer regardless of what FlowControl decided.
func (p *Peer) RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (headerfetch.Reply, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return headerfetch.Reply{}, err
	}
	return p.Wire.RequestHeaders(ctx, first, count, reverse)
}

var (
	_ fetcher.Peer     = (*Peer)(nil)
	_ headerfetch.Peer = (*Peer)(nil)
)

// Pool is a concrete fetcher.PeerPool/headerfetch-compatible registry:
// membership lives in a concurrent-map keyed by peer id, bans in a
// time-boxed set, each peer rate-limited individually.
type Pool struct {
	peers  cmap.ConcurrentMap
	banned mapset.Set[string]

	requestRate  rate.Limit
	requestBurst int
}

// NewPool builds an empty pool. requestRate/requestBurst size the
// golang.org/x/time/rate.Limiter handed to every registered peer.
func NewPool(requestRate rate.Limit, requestBurst int) *Pool {
	return &Pool{
		peers:        cmap.New(),
		banned:       mapset.NewSet[string](),
		requestRate:  requestRate,
		requestBurst: requestBurst,
	}
}

// Register wraps w as a Peer and adds it to the pool, keyed by w.ID() (or a
// fresh uuid when that is empty). If a peer is already registered under the
// same id, the existing registration wins and is returned.
func (p *Pool) Register(w Wire) *Peer {
	id := w.ID()
	if id == "" {
		id = uuid.NewString()
	}
	peer := newPeer(w, rate.NewLimiter(p.requestRate, p.requestBurst))
	p.peers.SetIfAbsent(id, peer)
	v, _ := p.peers.Get(id)
	return v.(*Peer)
}

// Unregister removes a peer (e.g. on disconnect); it does not clear any
// existing ban — a peer that reconnects under the same id while still
// banned stays banned until the ban expires.
func (p *Pool) Unregister(id string) {
	p.peers.Remove(id)
}

// Dialer is an optional Wire extension: a transport that needs to complete
// a handshake before it's usable implements it, and RegisterAll fans the
// handshakes out concurrently instead of dialing peers one at a time.
type Dialer interface {
	Dial(ctx context.Context) error
}

// RegisterAll dials (where wires implement Dialer) and registers wires
// concurrently, the way a bulk peer-discovery result is brought up in one
// batch rather than serially. It returns as soon as any single dial fails,
// canceling the rest, mirroring the fan-out/fail-fast shape of an
// errgroup.WithContext peer manager loop.
func (p *Pool) RegisterAll(ctx context.Context, wires []Wire) ([]*Peer, error) {
	eg, ctx := errgroup.WithContext(ctx)
	peers := make([]*Peer, len(wires))
	for i, w := range wires {
		i, w := i, w
		eg.Go(func() error {
			if d, ok := w.(Dialer); ok {
				if err := d.Dial(ctx); err != nil {
					return err
				}
			}
			peers[i] = p.Register(w)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return peers, nil
}

// Idle implements fetcher.PeerPool: it returns an unbanned, idle peer
// matching filter (nil matches any), preferring none over a deterministic
// order since the registry iterates a hash map.
func (p *Pool) Idle(filter func(fetcher.Peer) bool) (fetcher.Peer, bool) {
	for t := range p.peers.IterBuffered() {
		id := t.Key
		peer := t.Val.(*Peer)
		if p.banned.Contains(id) {
			continue
		}
		if !peer.Idle() {
			continue
		}
		if filter != nil && !filter(peer) {
			continue
		}
		return peer, true
	}
	return nil, false
}

// Ban implements fetcher.PeerPool: it marks id banned for d, scheduling
// automatic un-banning so a transient failure doesn't exile a peer forever.
func (p *Pool) Ban(peer fetcher.Peer, d time.Duration) {
	id := peer.ID()
	p.banned.Add(id)
	time.AfterFunc(d, func() {
		p.banned.Remove(id)
	})
}

// Contains implements fetcher.PeerPool.
func (p *Pool) Contains(peer fetcher.Peer) bool {
	_, ok := p.peers.Get(peer.ID())
	return ok
}

// Len reports the number of currently registered peers, banned or not.
func (p *Pool) Len() int {
	return p.peers.Count()
}

var _ fetcher.PeerPool = (*Pool)(nil)
