package fetcher

import "time"

// Peer is the minimal handle the engine needs for a remote participant. The
// concrete peer (transport, capabilities, flow-control bookkeeping) lives
// entirely with the collaborator; the engine only ever reads the id and
// flips the idle flag around a dispatch.
type Peer interface {
	ID() string
	Idle() bool
	SetIdle(idle bool)
}

// PeerPool is the external collaborator described in §3 and §6: membership,
// discovery and scoring live outside the engine. The engine only asks for an
// idle peer, bans misbehaving ones, and checks whether a peer handle is
// still a pool member before trusting it.
type PeerPool interface {
	// Idle returns an unused peer matching filter (nil matches any peer),
	// or false if none is currently idle.
	Idle(filter func(Peer) bool) (Peer, bool)
	// Ban removes or suspends peer for the given duration.
	Ban(peer Peer, d time.Duration)
	// Contains reports whether peer is still a member of the pool (a
	// disconnected peer may no longer be, in which case a pending ban or
	// re-request is a no-op rather than an error).
	Contains(peer Peer) bool
}
