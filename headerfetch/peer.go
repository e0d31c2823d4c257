package headerfetch

import (
	"context"
	"math/big"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/holiman/uint256"
)

// Reply is the raw GetBlockHeaders response: the returned headers plus the
// buffer value the peer reports for flow-control accounting.
type Reply struct {
	Headers []Header
	BV      *uint256.Int
}

// Peer extends fetcher.Peer with the capability flag and wire call the
// header specialization needs. The actual encode/decode of GetBlockHeaders
// over the wire is the transport's concern; RequestHeaders is the narrow
// boundary Request calls through.
type Peer interface {
	fetcher.Peer

	// ServeHeaders reports whether this peer advertised the header-serving
	// capability (light-client peers that only serve state don't).
	ServeHeaders() bool

	// RequestHeaders issues GetBlockHeaders{first, count, reverse} and
	// blocks for the reply or ctx cancellation.
	RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (Reply, error)
}
