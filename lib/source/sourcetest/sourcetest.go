// Package sourcetest provides an in-memory data source and node provider for tests.
package sourcetest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/source"
)

// ErrFake is returned by the fake when a read is set to fail.
var ErrFake = errors.New("fake upstream failure")

// Source is a data source whose answers are set by the test. Fields can be changed while in use by holding Mu.
type Source struct {
	Mu sync.Mutex

	TokenList    []types.Token
	Balances     []types.TokenBalance
	Native       types.TokenBalance
	Primary      types.TransactionPage
	Events       []types.Event
	Internal     []types.InternalTransaction
	Txs          map[string]types.Transaction
	NftInfo      types.Nft
	Instances    []types.NftInstancePage
	Logs         []types.EventLog
	Holders      types.TokenHolderPage
	FailBalances bool
	FailPrimary  bool
	FailEvents   bool
	FailInternal bool

	calls map[string]int
}

// New returns an empty fake source.
func New() *Source {
	return &Source{Txs: map[string]types.Transaction{}, calls: map[string]int{}}
}

func (s *Source) hit(m string) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}

	s.calls[m]++
}

// Calls returns the number of calls made to method m.
func (s *Source) Calls(m string) int {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	return s.calls[m]
}

func (s *Source) ID() string { return "fake" }

func (s *Source) Tokens(ctx context.Context) ([]types.Token, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("Tokens")

	return s.TokenList, nil
}

func (s *Source) TokensByAddress(ctx context.Context, address string) ([]types.TokenBalance, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("TokensByAddress")

	if s.FailBalances {
		return nil, ErrFake
	}

	return append([]types.TokenBalance{}, s.Balances...), nil
}

func (s *Source) NativeBalanceByAddress(ctx context.Context, address string) (types.TokenBalance, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("NativeBalanceByAddress")

	return s.Native, nil
}

func (s *Source) TransactionsByAddress(ctx context.Context, q source.TxQuery) (types.TransactionPage, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("TransactionsByAddress")

	if s.FailPrimary {
		return types.TransactionPage{}, ErrFake
	}

	p := s.Primary
	p.Data = append([]types.Transaction{}, s.Primary.Data...)

	return p, nil
}

func (s *Source) EventsByAddress(ctx context.Context, address string) ([]types.Event, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("EventsByAddress")

	if s.FailEvents {
		return nil, ErrFake
	}

	return append([]types.Event{}, s.Events...), nil
}

func (s *Source) InternalTransactionsByAddress(ctx context.Context, address string) (
	[]types.InternalTransaction, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("InternalTransactionsByAddress")

	if s.FailInternal {
		return nil, ErrFake
	}

	return append([]types.InternalTransaction{}, s.Internal...), nil
}

func (s *Source) Transaction(ctx context.Context, hash string) (types.Transaction, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("Transaction")

	tx, ok := s.Txs[hash]
	if !ok {
		return types.Transaction{}, types.ErrNoTrx
	}

	return tx, nil
}

func (s *Source) Nft(ctx context.Context, address string) (types.Nft, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("Nft")

	return s.NftInfo, nil
}

// NftInstances serves Instances in order, the cursor {"page": n} selects page n.
func (s *Source) NftInstances(ctx context.Context, nft string, cursor types.PageParams) (
	types.NftInstancePage, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("NftInstances")

	i := 0
	if cursor != nil {
		switch n := cursor["page"].(type) {
		case int:
			i = n
		case float64:
			i = int(n)
		}
	}

	if i >= len(s.Instances) {
		return types.NftInstancePage{}, ErrFake
	}

	p := s.Instances[i]
	p.Items = append([]types.NftInstance{}, p.Items...)

	return p, nil
}

func (s *Source) EventLogsByAddressAndTopic0(ctx context.Context, q types.LogQuery) ([]types.EventLog, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("EventLogsByAddressAndTopic0")

	return s.Logs, nil
}

func (s *Source) TokenHolders(ctx context.Context, token string, cursor types.PageParams) (
	types.TokenHolderPage, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.hit("TokenHolders")

	return s.Holders, nil
}

// Node is a node provider returning Bal, or ErrFake when Fail is set.
type Node struct {
	Mu   sync.Mutex
	Bal  *big.Int
	Fail bool
}

func (n *Node) Balance(ctx context.Context, address string) (*big.Int, error) {
	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Fail {
		return nil, ErrFake
	}

	if n.Bal == nil {
		return new(big.Int), nil
	}

	return new(big.Int).Set(n.Bal), nil
}

func (n *Node) Close() {}
