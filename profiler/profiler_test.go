package profiler

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/lib/block"
	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/price"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/source/sourcetest"
)

const addr = "0x9D7F3D7D5D3F5E4B2C1A0F9E8D7C6B5A49382716"

type fixture struct {
	ds    *sourcetest.Source
	node  *sourcetest.Node
	store *price.Store
	svc   *address.Service
}

func newFixture() *fixture {
	f := &fixture{
		ds:    sourcetest.New(),
		node:  &sourcetest.Node{Bal: big.NewInt(16)},
		store: price.NewStore("USD"),
	}

	f.ds.Balances = []types.TokenBalance{{Token: types.Token{Symbol: "tRIF"}, Balance: "1"}}
	f.ds.Primary = types.TransactionPage{Data: []types.Transaction{{Hash: "0x1"}}}

	f.svc = address.New(address.Options{
		Sources: map[string]source.DataSource{"31": f.ds},
		Nodes:   map[string]block.NodeProvider{"31": f.node},
		Prices:  f.store,
		Symbols: map[string]string{"31": "tRBTC"},
	})

	return f
}

func collect(p *Profiler, channels ...string) map[string]*recorder {
	recs := make(map[string]*recorder, len(channels))

	for _, ch := range channels {
		r := &recorder{}
		recs[ch] = r
		p.On(ch, r.handle)
	}

	return recs
}

func TestNew(t *testing.T) {
	f := newFixture()

	var tests = []struct {
		name string
		o    Options
		err  error
	}{
		{"empty address", Options{Source: f.ds, Node: f.node, Reconciler: f.svc}, types.ErrEmptyAddress},
		{"no source", Options{Address: addr, Node: f.node, Reconciler: f.svc}, types.ErrNoDataSource},
		{"no reconciler", Options{Address: addr, Source: f.ds, Node: f.node}, ErrNoReconciler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.o)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// no I/O when building
	p, err := New(Options{Address: addr, Source: f.ds, Node: f.node, Reconciler: f.svc})
	require.NoError(t, err)
	assert.Equal(t, "0x9d7f3d7d5d3f5e4b2c1a0f9e8d7c6b5a49382716", p.Address())
	assert.Equal(t, "31", p.ChainID())
	assert.Equal(t, 0, f.ds.Calls("TokensByAddress"))

	_, err = ForAddress(f.svc, "30", addr, 0, 0)
	assert.ErrorIs(t, err, types.ErrNoDataSource)
}

func TestNativeBalanceWithoutNode(t *testing.T) {
	f := newFixture()
	f.ds.Native = types.NativeBalance("tRBTC", big.NewInt(3))

	svc := address.New(address.Options{Sources: map[string]source.DataSource{"31": f.ds}, Prices: f.store})

	p, err := ForAddress(svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	recs := collect(p, ChannelNativeBalance)

	require.NoError(t, p.Subscribe(context.Background()))
	defer p.Unsubscribe()

	require.Len(t, recs[ChannelNativeBalance].get(), 1)
	assert.Equal(t, Change{Type: NewRbtcBalance, Payload: f.ds.Native}, recs[ChannelNativeBalance].get()[0])
	assert.Equal(t, 1, f.ds.Calls("NativeBalanceByAddress"))
}

func TestSubscribe(t *testing.T) {
	f := newFixture()

	p, err := ForAddress(f.svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	recs := collect(p, ChannelBalances, ChannelNativeBalance, ChannelTransactions, ChannelPrices)

	require.NoError(t, p.Subscribe(context.Background()))
	require.NoError(t, p.Subscribe(context.Background()))

	defer p.Unsubscribe()

	// first ticks are done when Subscribe returns
	require.Len(t, recs[ChannelBalances].get(), 1)
	require.Len(t, recs[ChannelNativeBalance].get(), 1)
	require.Len(t, recs[ChannelTransactions].get(), 1)
	assert.Empty(t, recs[ChannelPrices].get())

	c := recs[ChannelNativeBalance].get()[0].(Change)
	assert.Equal(t, NewRbtcBalance, c.Type)
	assert.Equal(t, types.NativeBalance("tRBTC", big.NewInt(16)), c.Payload)

	c = recs[ChannelBalances].get()[0].(Change)
	assert.Equal(t, NewBalance, c.Type)
	assert.Len(t, c.Payload, 1)

	c = recs[ChannelTransactions].get()[0].(Change)
	assert.Equal(t, NewTransaction, c.Type)
	assert.Equal(t, []types.Transaction{{Hash: "0x1"}}, c.Payload)

	// prices are broadcast when the default currency changes
	prices := price.Prices{types.ZeroAddress: {Price: decimal.NewFromInt(1)}}
	f.store.Update("USD", prices)
	f.store.Update("USD", prices)
	f.store.Update("EUR", prices)

	require.Len(t, recs[ChannelPrices].get(), 1)
	assert.Equal(t, Change{Type: NewPrice, Payload: prices}, recs[ChannelPrices].get()[0])
}

func TestTokenTransferFeed(t *testing.T) {
	f := newFixture()

	p, err := ForAddress(f.svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	recs := collect(p, ChannelTransactions)

	require.NoError(t, p.Subscribe(context.Background()))
	defer p.Unsubscribe()

	require.Len(t, recs[ChannelTransactions].get(), 1)

	// a new token transfer refreshes the transactions
	f.ds.Mu.Lock()
	f.ds.Events = []types.Event{{TransactionHash: "0x2", From: addr}}
	f.ds.Txs["0x2"] = types.Transaction{Hash: "0x2"}
	f.ds.Mu.Unlock()

	require.NoError(t, p.tokenTransfers.Poll(context.Background()))

	got := recs[ChannelTransactions].get()
	require.Len(t, got, 2)
	assert.Equal(t, []types.Transaction{{Hash: "0x1"}, {Hash: "0x2"}}, got[1].(Change).Payload)
}

func TestFailureIsolation(t *testing.T) {
	f := newFixture()
	f.node.Fail = true
	f.ds.FailBalances = true

	p, err := ForAddress(f.svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	recs := collect(p, ChannelBalances, ChannelNativeBalance, ChannelTransactions)

	require.NoError(t, p.Subscribe(context.Background()))
	defer p.Unsubscribe()

	assert.Empty(t, recs[ChannelBalances].get())
	assert.Empty(t, recs[ChannelNativeBalance].get())
	assert.Len(t, recs[ChannelTransactions].get(), 1)

	// the provider recovers on its next tick
	f.node.Mu.Lock()
	f.node.Fail = false
	f.node.Mu.Unlock()

	require.NoError(t, p.rbtcBalance.Poll(context.Background()))
	assert.Len(t, recs[ChannelNativeBalance].get(), 1)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture()

	p, err := ForAddress(f.svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	// before Subscribe
	p.Unsubscribe()

	recs := collect(p, ChannelBalances, ChannelPrices)

	require.NoError(t, p.Subscribe(context.Background()))
	p.Unsubscribe()
	p.Unsubscribe()

	f.store.Update("USD", price.Prices{types.ZeroAddress: {Price: decimal.NewFromInt(2)}})
	f.ds.Mu.Lock()
	f.ds.Balances = nil
	f.ds.Mu.Unlock()
	p.balances.Refresh()

	assert.Len(t, recs[ChannelBalances].get(), 1)
	assert.Empty(t, recs[ChannelPrices].get())
}

func TestSnapshot(t *testing.T) {
	f := newFixture()

	p, err := ForAddress(f.svc, "31", addr, 0, time.Hour)
	require.NoError(t, err)

	d := p.Snapshot(context.Background())
	assert.Len(t, d.Tokens, 2)
	assert.Len(t, d.Transactions.Data, 1)
	assert.NotNil(t, d.Prices)
}
