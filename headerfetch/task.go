// Package headerfetch is the header specialization (C8): a concrete
// request/process/store triple over a light-client-style flow-controlled
// peer capability, plugged into the generic fetcher.Engine.
package headerfetch

import "math/big"

// Task is the block-range descriptor for one header-fetch job. Block
// numbers are arbitrary precision (§9: some chains exceed 64-bit block
// numbers), so First is a *big.Int — the same type go-ethereum itself uses
// for header.Number.
type Task struct {
	First   *big.Int
	Count   int
	Reverse bool
}

// Header is the minimal storage item the engine moves through the
// pipeline. The real wire encoding/decoding and persistent representation
// are external collaborators (§1); this is just enough shape to exercise
// ordering, partial results and reorgs end to end.
type Header struct {
	Number     *big.Int
	Hash       [32]byte
	ParentHash [32]byte
}
