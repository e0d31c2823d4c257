package headerfetch_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/ethfetch/headerpipe/headerfetch"
)

type fakeChain struct {
	puts [][]headerfetch.Header
	drop int // drop the first n headers of the next PutHeaders call (simulates dupes)
	err  error
}

func (c *fakeChain) PutHeaders(headers []headerfetch.Header) (int, error) {
	c.puts = append(c.puts, headers)
	if c.err != nil {
		return 0, c.err
	}
	accepted := len(headers) - c.drop
	if accepted < 0 {
		accepted = 0
	}
	c.drop = 0
	return accepted, nil
}

type fakeFlow struct {
	credit int
	seen   []*uint256.Int
}

func (f *fakeFlow) MaxRequestCount(peer fetcher.Peer, msg string) int { return f.credit }
func (f *fakeFlow) HandleReply(peer fetcher.Peer, bv *uint256.Int)    { f.seen = append(f.seen, bv) }

type fakeEvents struct {
	fetched [][]headerfetch.Header
}

func (e *fakeEvents) FetcherError(err error, peer fetcher.Peer) {}
func (e *fakeEvents) FetchedHeaders(headers []headerfetch.Header) {
	e.fetched = append(e.fetched, headers)
}

type fakeWirePeer struct {
	id    string
	serve bool
}

func (p *fakeWirePeer) ID() string         { return p.id }
func (p *fakeWirePeer) Idle() bool         { return true }
func (p *fakeWirePeer) SetIdle(bool)       {}
func (p *fakeWirePeer) ServeHeaders() bool { return p.serve }
func (p *fakeWirePeer) RequestHeaders(ctx context.Context, first *big.Int, count int, reverse bool) (headerfetch.Reply, error) {
	headers := make([]headerfetch.Header, count)
	for i := range headers {
		headers[i] = headerfetch.Header{Number: new(big.Int).Add(first, big.NewInt(int64(i)))}
	}
	return headerfetch.Reply{Headers: headers, BV: uint256.NewInt(42)}, nil
}

func TestFetcherNextTasksTilesRange(t *testing.T) {
	flow := &fakeFlow{credit: 1000}
	f := headerfetch.New(headerfetch.Config{
		First:         big.NewInt(0),
		Count:         25,
		MaxPerRequest: 10,
	}, &fakeChain{}, flow, nil)

	first := f.NextTasks()
	require.Len(t, first, 1)
	assert.Zero(t, first[0].First.Cmp(big.NewInt(0)))
	assert.Equal(t, 10, first[0].Count)

	second := f.NextTasks()
	require.Len(t, second, 1)
	assert.Zero(t, second[0].First.Cmp(big.NewInt(10)))
	assert.Equal(t, 10, second[0].Count)

	third := f.NextTasks()
	require.Len(t, third, 1)
	assert.Zero(t, third[0].First.Cmp(big.NewInt(20)))
	assert.Equal(t, 5, third[0].Count) // remainder

	assert.Nil(t, f.NextTasks())
}

func TestFetcherRequestSkipsPeerWithoutCredit(t *testing.T) {
	flow := &fakeFlow{credit: 0}
	f := headerfetch.New(headerfetch.Config{First: big.NewInt(0), Count: 10, MaxPerRequest: 10}, &fakeChain{}, flow, nil)

	job := &fetcher.Job[headerfetch.Task, headerfetch.Header]{Task: headerfetch.Task{First: big.NewInt(0), Count: 10}}
	peer := &fakeWirePeer{id: "p1", serve: true}

	reply, ok, err := f.Request(context.Background(), job, peer)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, reply.Headers)
}

func TestFetcherRequestRejectsNonHeaderPeer(t *testing.T) {
	flow := &fakeFlow{credit: 1000}
	f := headerfetch.New(headerfetch.Config{First: big.NewInt(0), Count: 10, MaxPerRequest: 10}, &fakeChain{}, flow, nil)

	job := &fetcher.Job[headerfetch.Task, headerfetch.Header]{Task: headerfetch.Task{First: big.NewInt(0), Count: 10}}

	_, _, err := f.Request(context.Background(), job, plainPeer{"p1"})
	assert.Error(t, err)
}

type plainPeer struct{ id string }

func (p plainPeer) ID() string   { return p.id }
func (p plainPeer) Idle() bool   { return true }
func (p plainPeer) SetIdle(bool) {}

func TestFetcherProcessAccumulatesPartial(t *testing.T) {
	flow := &fakeFlow{credit: 1000}
	f := headerfetch.New(headerfetch.Config{First: big.NewInt(0), Count: 10, MaxPerRequest: 10}, &fakeChain{}, flow, nil)

	job := &fetcher.Job[headerfetch.Task, headerfetch.Header]{Task: headerfetch.Task{First: big.NewInt(0), Count: 5}}

	reply := headerfetch.Reply{
		Headers: []headerfetch.Header{{Number: big.NewInt(0)}, {Number: big.NewInt(1)}},
		BV:      uint256.NewInt(7),
	}
	items, complete := f.Process(job, reply)
	assert.False(t, complete)
	assert.Nil(t, items)
	assert.Len(t, job.Partial, 2) // Process itself records the accumulated prefix on job.Partial
	require.Len(t, flow.seen, 1)
	assert.Equal(t, uint64(7), flow.seen[0].Uint64())

	reply2 := headerfetch.Reply{
		Headers: []headerfetch.Header{{Number: big.NewInt(2)}, {Number: big.NewInt(3)}, {Number: big.NewInt(4)}},
		BV:      uint256.NewInt(7),
	}
	items, complete = f.Process(job, reply2)
	assert.True(t, complete)
	require.Len(t, items, 5)
}

func TestFetcherStoreEmitsAcceptedPrefix(t *testing.T) {
	chain := &fakeChain{drop: 1} // simulate one duplicate header
	events := &fakeEvents{}
	f := headerfetch.New(headerfetch.Config{First: big.NewInt(0), Count: 10, MaxPerRequest: 10}, chain, &fakeFlow{credit: 1000}, events)

	items := []headerfetch.Header{{Number: big.NewInt(0)}, {Number: big.NewInt(1)}, {Number: big.NewInt(2)}}
	require.NoError(t, f.Store(items))

	require.Len(t, events.fetched, 1)
	assert.Len(t, events.fetched[0], 2) // 3 - 1 dropped duplicate
}

func TestFetcherRewriteForReorg(t *testing.T) {
	f := headerfetch.New(headerfetch.Config{
		First:             big.NewInt(0),
		Count:             10,
		MaxPerRequest:     10,
		SafeReorgDistance: 64,
	}, &fakeChain{}, &fakeFlow{credit: 1000}, nil)

	rewritten, ok := f.RewriteForReorg(headerfetch.Task{First: big.NewInt(1000), Count: 10})
	require.True(t, ok)
	assert.Zero(t, rewritten.First.Cmp(big.NewInt(936)))
	assert.Equal(t, 74, rewritten.Count)

	_, ok = f.RewriteForReorg(headerfetch.Task{First: big.NewInt(1), Count: 10})
	assert.False(t, ok)
}
