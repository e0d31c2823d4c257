package headerfetch

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/ethfetch/headerpipe/fetcher"
)

// LRUFlowControl is a concrete, credit-based FlowControl: each peer's last
// reported buffer value is cached (bounded, LRU-evicted so a churning peer
// set can't grow this without limit), and MaxRequestCount divides that
// credit by a fixed per-header cost to decide how many headers the peer can
// currently serve — the same buffer-value/cost accounting go-ethereum's les
// flow control does, simplified to a single fixed cost per header.
type LRUFlowControl struct {
	mu            sync.Mutex
	cache         *lru.Cache[string, *uint256.Int]
	costPerHeader *uint256.Int
	initialCredit *uint256.Int
}

// NewLRUFlowControl builds a FlowControl caching up to size peers' credit,
// charging costPerHeader buffer-value units per requested header. A peer
// that has never replied yet is granted initialCredit buffer-value units,
// the way a real connection is handed an initial contract allowance before
// any BV has actually been reported back.
func NewLRUFlowControl(size int, costPerHeader, initialCredit uint64) (*LRUFlowControl, error) {
	cache, err := lru.New[string, *uint256.Int](size)
	if err != nil {
		return nil, err
	}
	return &LRUFlowControl{
		cache:         cache,
		costPerHeader: uint256.NewInt(costPerHeader),
		initialCredit: uint256.NewInt(initialCredit),
	}, nil
}

// MaxRequestCount reports how many headers peer's cached credit currently
// covers, falling back to the initial allowance for a peer that has never
// replied yet.
func (f *LRUFlowControl) MaxRequestCount(peer fetcher.Peer, msg string) int {
	f.mu.Lock()
	bv, ok := f.cache.Get(peer.ID())
	f.mu.Unlock()
	if f.costPerHeader.IsZero() {
		return 0
	}
	if !ok {
		bv = f.initialCredit
	}
	count := new(uint256.Int).Div(bv, f.costPerHeader)
	if !count.IsUint64() {
		return math.MaxInt32
	}
	n := count.Uint64()
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// HandleReply records the buffer value the peer reported with its reply.
func (f *LRUFlowControl) HandleReply(peer fetcher.Peer, bv *uint256.Int) {
	if bv == nil {
		return
	}
	f.mu.Lock()
	f.cache.Add(peer.ID(), new(uint256.Int).Set(bv))
	f.mu.Unlock()
}

var _ FlowControl = (*LRUFlowControl)(nil)
