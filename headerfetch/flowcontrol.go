package headerfetch

import (
	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/holiman/uint256"
)

// FlowControl is the external collaborator described in §4.6: before
// dispatching, Request consults it to make sure the target peer has enough
// granted buffer value for the request size; after a reply, HandleReply
// updates the peer's remaining credit from the buffer-value field the peer
// itself reported.
type FlowControl interface {
	// MaxRequestCount returns how many msg-typed items peer currently has
	// credit to serve. Request treats a value below the configured
	// per-request size as "this peer can't take it right now" rather than
	// an error (§4.6: "returns nothing", i.e. re-queue with a different peer).
	MaxRequestCount(peer fetcher.Peer, msg string) int

	// HandleReply records the buffer value bv the peer reported alongside
	// its reply, replenishing (or correcting) that peer's credit.
	HandleReply(peer fetcher.Peer, bv *uint256.Int)
}
