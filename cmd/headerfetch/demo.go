package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ethfetch/headerpipe/headerfetch"
)

// demoWire is a synthetic peer used by `headerfetch --demo`: it
// fabricates a deterministic, self-consistent header chain on demand so the
// full engine -> peerpool -> flow control -> chain pipeline can be exercised
// without a live devp2p connection or database.
type demoWire struct {
	id string
	bv uint64
}

func newDemoWire(id string) *demoWire { return &demoWire{id: id, bv: 1 << 20} }

func (w *demoWire) ID() string         { return w.id }
func (w *demoWire) ServeHeaders() bool { return true }

func (w *demoWire) RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (headerfetch.Reply, error) {
	headers := make([]headerfetch.Header, 0, count)
	cur := new(big.Int).Set(first)
	step := big.NewInt(1)
	if reverse {
		step = big.NewInt(-1)
	}
	for i := 0; i < count; i++ {
		headers = append(headers, syntheticHeader(cur))
		cur = new(big.Int).Add(cur, step)
	}
	return headerfetch.Reply{Headers: headers, BV: uint256.NewInt(w.bv)}, nil
}

// syntheticHeader derives a deterministic hash/parent-hash pair from the
// block number alone, so any two calls for the same number agree and
// consecutive numbers chain correctly.
func syntheticHeader(number *big.Int) headerfetch.Header {
	h := headerfetch.Header{Number: new(big.Int).Set(number)}
	h.Hash = hashOf(number)
	h.ParentHash = hashOf(new(big.Int).Sub(number, big.NewInt(1)))
	return h
}

func hashOf(number *big.Int) [32]byte {
	var buf [8]byte
	n := number.Uint64()
	binary.BigEndian.PutUint64(buf[:], n)
	return sha256.Sum256(buf[:])
}

// demoChain is an in-memory headerfetch.Chain, standing in for
// storage/sqlstore in --demo mode. It starts out holding the synthetic
// genesis header, so a backfill from block 1 chains onto it.
type demoChain struct {
	mu      sync.Mutex
	byHash  map[[32]byte]headerfetch.Header
	highest *big.Int
}

func newDemoChain() *demoChain {
	c := &demoChain{byHash: make(map[[32]byte]headerfetch.Header)}
	genesis := syntheticHeader(big.NewInt(0))
	c.byHash[genesis.Hash] = genesis
	return c
}

func (c *demoChain) PutHeaders(headers []headerfetch.Header) (int, error) {
	if len(headers) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if headers[0].Number.Sign() != 0 {
		if _, ok := c.byHash[headers[0].ParentHash]; !ok {
			return 0, fmt.Errorf("could not find parent for block %s", headers[0].Number)
		}
	}
	accepted := 0
	for _, h := range headers {
		if _, ok := c.byHash[h.Hash]; ok {
			continue
		}
		c.byHash[h.Hash] = h
		if c.highest == nil || h.Number.Cmp(c.highest) > 0 {
			c.highest = new(big.Int).Set(h.Number)
		}
		accepted++
	}
	return accepted, nil
}
