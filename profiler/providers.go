package profiler

import (
	"context"
	"time"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/lib/block"
	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/util"
)

// Channels a profiler emits on.
const (
	ChannelBalances       = "balances"
	ChannelNativeBalance  = "rbtcBalance"
	ChannelTransactions   = "transactions"
	ChannelPrices         = "prices"
	ChannelTokenTransfers = "tokenTransfers"
)

// Change types sent to the clients.
const (
	NewBalance     = "newBalance"
	NewRbtcBalance = "newRbtcBalance"
	NewTransaction = "newTransaction"
	NewPrice       = "newPrice"
	NewTransfer    = "newTokenTransfer"
)

// changeTypes maps each channel to the type of its changes.
var changeTypes = map[string]string{
	ChannelBalances:       NewBalance,
	ChannelNativeBalance:  NewRbtcBalance,
	ChannelTransactions:   NewTransaction,
	ChannelPrices:         NewPrice,
	ChannelTokenTransfers: NewTransfer,
}

// Change is the payload a profiler emits.
type Change struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Reconciler lists the transactions of an address and reads its full state. It is implemented by address.Service.
type Reconciler interface {
	TransactionsByAddress(ctx context.Context, q address.TxQuery) (types.TransactionPage, error)
	Snapshot(ctx context.Context, q address.TxQuery) address.Details
}

// NewBalanceProvider polls the token balances of addr.
func NewBalanceProvider(addr string, ds source.DataSource, interval time.Duration) *Poller[[]types.TokenBalance] {
	addr = util.Lower(addr)

	return NewPoller(ChannelBalances, addr, func(ctx context.Context) ([]types.TokenBalance, error) {
		return ds.TokensByAddress(ctx, addr)
	}, nil, interval)
}

// NewNativeBalanceProvider polls the native coin balance of addr from a node.
func NewNativeBalanceProvider(addr, symbol string, node block.NodeProvider,
	interval time.Duration) *Poller[types.TokenBalance] {
	addr = util.Lower(addr)

	return NewPoller(ChannelNativeBalance, addr, func(ctx context.Context) (types.TokenBalance, error) {
		bal, err := node.Balance(ctx, addr)
		if err != nil {
			return types.TokenBalance{}, err
		}

		return types.NativeBalance(symbol, bal), nil
	}, nil, interval)
}

// NewSourceNativeBalanceProvider polls the native coin balance of addr as indexed by a data source.
func NewSourceNativeBalanceProvider(addr string, ds source.DataSource,
	interval time.Duration) *Poller[types.TokenBalance] {
	addr = util.Lower(addr)

	return NewPoller(ChannelNativeBalance, addr, func(ctx context.Context) (types.TokenBalance, error) {
		return ds.NativeBalanceByAddress(ctx, addr)
	}, nil, interval)
}

// NewTransactionProvider polls the reconciled transactions of q.Address.
func NewTransactionProvider(q address.TxQuery, r Reconciler, interval time.Duration) *Poller[[]types.Transaction] {
	q.Address = util.Lower(q.Address)

	return NewPoller(ChannelTransactions, q.Address, func(ctx context.Context) ([]types.Transaction, error) {
		page, err := r.TransactionsByAddress(ctx, q)

		return page.Data, err
	}, nil, interval)
}

// NewTokenTransferProvider polls the token transfer events of addr.
func NewTokenTransferProvider(addr string, ds source.DataSource, interval time.Duration) *Poller[[]types.Event] {
	addr = util.Lower(addr)

	return NewPoller(ChannelTokenTransfers, addr, func(ctx context.Context) ([]types.Event, error) {
		return ds.EventsByAddress(ctx, addr)
	}, nil, interval)
}
