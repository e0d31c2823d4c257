package peerpool_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/ethfetch/headerpipe/headerfetch"
	"github.com/ethfetch/headerpipe/peerpool"
)

type stubWire struct {
	id    string
	serve bool
}

func (w stubWire) ID() string         { return w.id }
func (w stubWire) ServeHeaders() bool { return w.serve }
func (w stubWire) RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (headerfetch.Reply, error) {
	return headerfetch.Reply{}, nil
}

type dialingWire struct {
	stubWire
	fail    bool
	dialed  chan struct{}
	release chan struct{}
}

func (w *dialingWire) Dial(ctx context.Context) error {
	close(w.dialed)
	select {
	case <-w.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if w.fail {
		return errors.New("dial failed")
	}
	return nil
}

func TestPoolIdleSkipsBannedAndBusyPeers(t *testing.T) {
	pool := peerpool.NewPool(100, 10)
	a := pool.Register(stubWire{id: "a", serve: true})
	b := pool.Register(stubWire{id: "b", serve: true})

	a.SetIdle(false)
	pool.Ban(b, time.Hour)

	_, ok := pool.Idle(nil)
	assert.False(t, ok, "both peers are unavailable: a is busy, b is banned")

	a.SetIdle(true)
	got, ok := pool.Idle(nil)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID())
}

func TestPoolIdleAppliesFilter(t *testing.T) {
	pool := peerpool.NewPool(100, 10)
	pool.Register(stubWire{id: "plain", serve: false})
	pool.Register(stubWire{id: "header", serve: true})

	got, ok := pool.Idle(func(p fetcher.Peer) bool {
		hp, ok := p.(headerfetch.Peer)
		return ok && hp.ServeHeaders()
	})
	require.True(t, ok)
	assert.Equal(t, "header", got.ID())
}

func TestPoolBanExpiresAutomatically(t *testing.T) {
	pool := peerpool.NewPool(100, 10)
	peer := pool.Register(stubWire{id: "a", serve: true})

	pool.Ban(peer, 10*time.Millisecond)
	_, ok := pool.Idle(nil)
	assert.False(t, ok, "freshly banned peer must not be selectable")

	assert.Eventually(t, func() bool {
		_, ok := pool.Idle(nil)
		return ok
	}, time.Second, time.Millisecond, "ban should lift once its duration elapses")
}

func TestPoolContainsAndUnregister(t *testing.T) {
	pool := peerpool.NewPool(100, 10)
	peer := pool.Register(stubWire{id: "a", serve: true})
	assert.True(t, pool.Contains(peer))

	pool.Unregister("a")
	assert.False(t, pool.Contains(peer))
}

func TestPoolRegisterAllSucceeds(t *testing.T) {
	pool := peerpool.NewPool(100, 10)
	wires := []peerpool.Wire{
		stubWire{id: "a", serve: true},
		stubWire{id: "b", serve: true},
	}
	peers, err := pool.RegisterAll(context.Background(), wires)
	require.NoError(t, err)
	assert.Len(t, peers, 2)
	assert.Equal(t, 2, pool.Len())
}

func TestPoolRegisterAllFailsFastOnDialError(t *testing.T) {
	pool := peerpool.NewPool(100, 10)

	good := &dialingWire{stubWire: stubWire{id: "good", serve: true}, dialed: make(chan struct{}), release: make(chan struct{})}
	bad := &dialingWire{stubWire: stubWire{id: "bad", serve: true}, fail: true, dialed: make(chan struct{}), release: make(chan struct{})}
	close(bad.release) // bad returns its error immediately

	wires := []peerpool.Wire{good, bad}
	_, err := pool.RegisterAll(context.Background(), wires)
	require.Error(t, err)

	// good's Dial was canceled via the shared errgroup context before it
	// could complete, so it was never registered.
	assert.Equal(t, 0, pool.Len())
	close(good.release)
}
