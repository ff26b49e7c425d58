// Package profiler follows the activity of one address. A Profiler composes interval pollers for token balances,
// native balance, transactions and token transfers with a price provider, and emits a Change on the channel of the
// provider whenever the value it reads differs from the one it emitted last.
//
// Token transfer changes are not sent to clients: they trigger an extra tick of the transactions poller so new
// transfers show up in the transaction list without waiting for its next tick.
package profiler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/lib/block"
	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/emitter"
	"github.com/tarancss/addrprof/lib/price"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/util"
)

// ErrNoReconciler is returned by New when no transaction reconciler is given.
var ErrNoReconciler = errors.New("no transaction reconciler")

// Options configures a Profiler.
type Options struct {
	ChainID     string
	Address     string
	BlockNumber uint64
	Symbol      string
	Interval    time.Duration
	Source      source.DataSource
	Node        block.NodeProvider
	Reconciler  Reconciler
	Prices      *price.Store
}

// subscriber is the part of a poller the profiler drives.
type subscriber interface {
	Kind() string
	On(channel string, h emitter.Handler) (unregister func())
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe()
}

// Profiler emits the changes of an address.
type Profiler struct {
	q address.TxQuery
	r Reconciler

	balances       *Poller[[]types.TokenBalance]
	rbtcBalance    *Poller[types.TokenBalance]
	transactions   *Poller[[]types.Transaction]
	tokenTransfers *Poller[[]types.Event]
	prices         *PriceProvider

	e     emitter.Emitter
	ready atomic.Bool

	mu         sync.Mutex
	subscribed bool
}

// New returns the profiler of o.Address. It does not read anything, see Snapshot and Subscribe.
func New(o Options) (*Profiler, error) {
	switch {
	case o.Address == "":
		return nil, types.ErrEmptyAddress
	case o.Source == nil:
		return nil, types.ErrNoDataSource
	case o.Reconciler == nil:
		return nil, ErrNoReconciler
	}

	if o.ChainID == "" {
		o.ChainID = address.DefaultChainID
	}

	if o.Symbol == "" {
		o.Symbol = address.DefaultSymbol
	}

	if o.Prices == nil {
		o.Prices = price.NewStore(price.DefaultCurrency)
	}

	addr := util.Lower(o.Address)
	q := address.TxQuery{ChainID: o.ChainID, TxQuery: source.TxQuery{Address: addr, BlockNumber: o.BlockNumber}}

	p := &Profiler{
		q:              q,
		r:              o.Reconciler,
		balances:       NewBalanceProvider(addr, o.Source, o.Interval),
		rbtcBalance:    nativeBalanceProvider(addr, o),
		transactions:   NewTransactionProvider(q, o.Reconciler, o.Interval),
		tokenTransfers: NewTokenTransferProvider(addr, o.Source, o.Interval),
		prices:         NewPriceProvider(o.Prices),
	}

	for _, s := range p.pollers() {
		p.forward(s)
	}

	p.prices.On(ChannelPrices, func(v interface{}) {
		p.e.Emit(ChannelPrices, Change{Type: NewPrice, Payload: v})
	})

	p.tokenTransfers.On(ChannelTokenTransfers, func(interface{}) {
		if p.ready.Load() {
			p.transactions.Refresh()
		}
	})

	return p, nil
}

// nativeBalanceProvider reads the native balance from the node of o, from its data source when there is no node.
func nativeBalanceProvider(addr string, o Options) *Poller[types.TokenBalance] {
	if o.Node == nil {
		return NewSourceNativeBalanceProvider(addr, o.Source, o.Interval)
	}

	return NewNativeBalanceProvider(addr, o.Symbol, o.Node, o.Interval)
}

// ForAddress returns the profiler of addr in chainID built from the data source, node and price store of svc.
func ForAddress(svc *address.Service, chainID, addr string, blockNumber uint64,
	interval time.Duration) (*Profiler, error) {
	ds, err := svc.Source(chainID)
	if err != nil {
		return nil, err
	}

	// chains without a node read the native balance from the data source
	node, _ := svc.Node(chainID)

	return New(Options{
		ChainID:     chainID,
		Address:     addr,
		BlockNumber: blockNumber,
		Symbol:      svc.Symbol(chainID),
		Interval:    interval,
		Source:      ds,
		Node:        node,
		Reconciler:  svc,
		Prices:      svc.PriceStore(),
	})
}

func (p *Profiler) pollers() []subscriber {
	return []subscriber{p.balances, p.rbtcBalance, p.transactions, p.tokenTransfers}
}

// forward re-emits the values of s on the profiler channel of the same name.
func (p *Profiler) forward(s subscriber) {
	ch := s.Kind()
	typ := changeTypes[ch]

	s.On(ch, func(v interface{}) {
		p.e.Emit(ch, Change{Type: typ, Payload: v})
	})
}

// Address returns the lowercase address profiled.
func (p *Profiler) Address() string { return p.q.Address }

// ChainID returns the chain of the address.
func (p *Profiler) ChainID() string { return p.q.ChainID }

// On registers h on channel. Handlers receive a Change.
func (p *Profiler) On(channel string, h emitter.Handler) (unregister func()) {
	return p.e.Register(channel, h)
}

// Snapshot reads now, best effort, the prices, tokens and transactions of the address.
func (p *Profiler) Snapshot(ctx context.Context) address.Details {
	return p.r.Snapshot(ctx, p.q)
}

// Subscribe starts the price provider and the pollers. It returns once the first tick of every poller is done.
// Subscribing twice does nothing.
func (p *Profiler) Subscribe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribed {
		return nil
	}

	p.prices.Subscribe(ChannelPrices)

	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs []error
	)

	for _, s := range p.pollers() {
		wg.Add(1)

		go func(s subscriber) {
			defer wg.Done()

			if err := s.Subscribe(ctx, s.Kind()); err != nil {
				emu.Lock()
				errs = append(errs, err)
				emu.Unlock()
			}
		}(s)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		p.stop()

		return err
	}

	p.subscribed = true
	p.ready.Store(true)

	return nil
}

// Unsubscribe stops every provider. It can be called any number of times.
func (p *Profiler) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stop()
	p.subscribed = false
}

func (p *Profiler) stop() {
	p.ready.Store(false)
	p.prices.Unsubscribe()

	// transactions first, a token transfer tick may be refreshing it
	p.transactions.Unsubscribe()
	p.tokenTransfers.Unsubscribe()
	p.balances.Unsubscribe()
	p.rbtcBalance.Unsubscribe()
}
