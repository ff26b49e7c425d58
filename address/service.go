// Package address implements the read operations the service exposes about an address: reconciled transactions,
// token balances, prices, NFTs, event logs and holders. The REST API and the websocket init message are served from
// it, and the transaction provider of every subscription polls its reconciler.
package address

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tarancss/addrprof/lib/block"
	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/paging"
	"github.com/tarancss/addrprof/lib/price"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/util"
)

// Default values of the queries.
const (
	DefaultChainID = "31"
	DefaultSymbol  = "RBTC"
)

// TxQuery selects a page of the transactions of an address in a chain.
type TxQuery struct {
	ChainID string
	source.TxQuery
}

// Details is the full state of an address: latest prices, token balances and transactions.
type Details struct {
	Prices       price.Prices          `json:"prices"`
	Tokens       []types.TokenBalance  `json:"tokens"`
	Transactions types.TransactionPage `json:"transactions"`
}

// Options holds the dependencies of a Service. Sources and Nodes are keyed by chain id, Symbols holds the native
// coin symbol of each chain.
type Options struct {
	Sources map[string]source.DataSource
	Nodes   map[string]block.NodeProvider
	Prices  *price.Store
	Symbols map[string]string
	Workers int
}

// Service implements the address read operations.
type Service struct {
	sources map[string]source.DataSource
	nodes   map[string]block.NodeProvider
	prices  *price.Store
	symbols map[string]string
	workers int
}

// New returns an address service.
func New(o Options) *Service {
	if o.Workers <= 0 {
		o.Workers = detailWorkers
	}

	if o.Prices == nil {
		o.Prices = price.NewStore(price.DefaultCurrency)
	}

	return &Service{
		sources: o.Sources,
		nodes:   o.Nodes,
		prices:  o.Prices,
		symbols: o.Symbols,
		workers: o.Workers,
	}
}

// Source returns the data source of chainID.
func (s *Service) Source(chainID string) (source.DataSource, error) {
	ds, ok := s.sources[chainID]
	if !ok || ds == nil {
		return nil, fmt.Errorf("%w %s", types.ErrNoDataSource, chainID)
	}

	return ds, nil
}

// Node returns the node provider of chainID.
func (s *Service) Node(chainID string) (block.NodeProvider, error) {
	n, ok := s.nodes[chainID]
	if !ok || n == nil {
		return nil, fmt.Errorf("%w %s", types.ErrNoNodeProvider, chainID)
	}

	return n, nil
}

// Symbol returns the native coin symbol of chainID.
func (s *Service) Symbol(chainID string) string {
	if sym := s.symbols[chainID]; sym != "" {
		return sym
	}

	return DefaultSymbol
}

// Chains returns the ids of the chains with a data source.
func (s *Service) Chains() []string {
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}

	return ids
}

// PriceStore returns the store the prices are read from.
func (s *Service) PriceStore() *price.Store { return s.prices }

// Prices returns the prices of addresses in currency, every price when addresses is empty.
func (s *Service) Prices(addresses []string, currency string) (price.Prices, error) {
	return s.prices.GetPrices(addresses, currency)
}

// LatestPrices returns the prices in the default currency.
func (s *Service) LatestPrices() price.Prices {
	return s.prices.Prices()
}

// NativeBalance returns the native coin balance of address read from the node of chainID. Chains without a node
// read it from their data source.
func (s *Service) NativeBalance(ctx context.Context, chainID, address string) (types.TokenBalance, error) {
	n, err := s.Node(chainID)
	if err != nil {
		ds, ok := s.sources[chainID]
		if !ok || ds == nil {
			return types.TokenBalance{}, err
		}

		return ds.NativeBalanceByAddress(ctx, util.Lower(address))
	}

	bal, err := n.Balance(ctx, util.Lower(address))
	if err != nil {
		return types.TokenBalance{}, err
	}

	return types.NativeBalance(s.Symbol(chainID), bal), nil
}

// TokensByAddress returns the token balances of address followed by its native coin balance.
func (s *Service) TokensByAddress(ctx context.Context, chainID, address string) ([]types.TokenBalance, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return nil, err
	}

	var (
		toks   []types.TokenBalance
		native types.TokenBalance
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		toks, err = ds.TokensByAddress(gctx, address)

		return
	})

	g.Go(func() (err error) {
		native, err = s.NativeBalance(gctx, chainID, address)

		return
	})

	if err = g.Wait(); err != nil {
		return nil, err
	}

	return append(toks, native), nil
}

// AddressDetails returns prices, tokens and transactions of an address. The reads run concurrently and the first
// failure is returned.
func (s *Service) AddressDetails(ctx context.Context, q TxQuery) (Details, error) {
	d := Details{Prices: s.LatestPrices()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Tokens, err = s.TokensByAddress(gctx, q.ChainID, q.Address)

		return
	})

	g.Go(func() (err error) {
		d.Transactions, err = s.TransactionsByAddress(gctx, q)

		return
	})

	return d, g.Wait()
}

// Tokens returns the tokens known by the data source of chainID.
func (s *Service) Tokens(ctx context.Context, chainID string) ([]types.Token, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return nil, err
	}

	return ds.Tokens(ctx)
}

// EventsByAddress returns the token transfer events of address.
func (s *Service) EventsByAddress(ctx context.Context, chainID, address string) ([]types.Event, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return nil, err
	}

	return ds.EventsByAddress(ctx, address)
}

// NftInfo returns the information of the NFT collection nft.
func (s *Service) NftInfo(ctx context.Context, chainID, nft string) (types.Nft, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return types.Nft{}, err
	}

	return ds.Nft(ctx, nft)
}

// NftOwnedByAddress walks the instances of the collection nft and returns those owned by address. The walk is
// bounded to paging.DefaultHops requests, a failed page ends it with the instances already found.
func (s *Service) NftOwnedByAddress(ctx context.Context, chainID, address, nft string) ([]types.NftInstance, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, cursor types.PageParams) (paging.Page[types.NftInstance], error) {
		p, err := ds.NftInstances(ctx, nft, cursor)

		return paging.Page[types.NftInstance]{Items: p.Items, Next: p.NextPageParams}, err
	}

	items, _ := paging.Walk[types.NftInstance](ctx, fetch, paging.DefaultHops)

	owned := []types.NftInstance{}

	for _, i := range items {
		if util.SameAddress(i.Owner, address) {
			owned = append(owned, i)
		}
	}

	return owned, nil
}

// EventLogsByAddressAndTopic0 returns the logs emitted by q.Address matching the topics.
func (s *Service) EventLogsByAddressAndTopic0(ctx context.Context, chainID string, q types.LogQuery) (
	[]types.EventLog, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return nil, err
	}

	return ds.EventLogsByAddressAndTopic0(ctx, q)
}

// NftHolders returns one page of instances of the collection nft, listed from the first holder.
func (s *Service) NftHolders(ctx context.Context, chainID, nft string, cursor types.PageParams) (
	types.NftInstancePage, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return types.NftInstancePage{}, err
	}

	p, err := ds.NftInstances(ctx, nft, cursor)
	if err != nil {
		return types.NftInstancePage{}, err
	}

	for i, j := 0, len(p.Items)-1; i < j; i, j = i+1, j-1 {
		p.Items[i], p.Items[j] = p.Items[j], p.Items[i]
	}

	return p, nil
}

// TokenHolders returns one page of holders of token.
func (s *Service) TokenHolders(ctx context.Context, chainID, token string, cursor types.PageParams) (
	types.TokenHolderPage, error) {
	ds, err := s.Source(chainID)
	if err != nil {
		return types.TokenHolderPage{}, err
	}

	return ds.TokenHolders(ctx, token, cursor)
}

// IsSetupError reports whether err comes from a request the service cannot serve (unknown chain, empty address),
// as opposed to an upstream failure.
func IsSetupError(err error) bool {
	return errors.Is(err, types.ErrNoDataSource) || errors.Is(err, types.ErrNoNodeProvider) ||
		errors.Is(err, types.ErrEmptyAddress)
}

// Snapshot is the best-effort form of AddressDetails: a failed read is logged and leaves its part empty.
func (s *Service) Snapshot(ctx context.Context, q TxQuery) Details {
	d := Details{
		Prices:       s.LatestPrices(),
		Tokens:       []types.TokenBalance{},
		Transactions: types.TransactionPage{Data: []types.Transaction{}},
	}

	var wg sync.WaitGroup

	wg.Add(2) //nolint:gomnd // tokens and transactions

	go func() {
		defer wg.Done()

		if toks, err := s.TokensByAddress(ctx, q.ChainID, q.Address); err != nil {
			logFailure("tokens", q.Address, err)
		} else {
			d.Tokens = toks
		}
	}()

	go func() {
		defer wg.Done()

		if txs, err := s.TransactionsByAddress(ctx, q); err != nil {
			logFailure("transactions", q.Address, err)
		} else {
			d.Transactions = txs
		}
	}()

	wg.Wait()

	return d
}

func logFailure(what, address string, err error) {
	log.Debug("snapshot read failed", zap.String("read", what), zap.String("address", address), zap.Error(err))
}
