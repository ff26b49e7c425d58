package address

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/util"
)

// detailWorkers bounds the concurrent transaction detail requests of one reconciliation.
const detailWorkers = 8

// TransactionsByAddress returns the page of transactions of q.Address merged with the transactions found through
// its token transfers and internal transactions. The cursors of the page are those of the direct transaction
// listing, the appended transactions are not accounted for.
func (s *Service) TransactionsByAddress(ctx context.Context, q TxQuery) (types.TransactionPage, error) {
	ds, err := s.Source(q.ChainID)
	if err != nil {
		return types.TransactionPage{}, err
	}

	if q.Address == "" {
		return types.TransactionPage{}, types.ErrEmptyAddress
	}

	primary, err := ds.TransactionsByAddress(ctx, q.TxQuery)
	if err != nil {
		return types.TransactionPage{}, err
	}

	refs, err := secondaryRefs(ctx, ds, q.Address)
	if err != nil {
		log.Debug("secondary transaction sources failed", zap.String("address", q.Address), zap.Error(err))

		refs = nil
	}

	hashes := Reconcile(primary.Data, refs, q.Address, q.BlockNumber)
	details := s.details(ctx, ds, hashes)

	metrics.Secondary.Add(float64(len(details)))

	page := types.TransactionPage{
		Data: make([]types.Transaction, 0, len(primary.Data)+len(details)),
		Prev: primary.Prev,
		Next: primary.Next,
	}
	page.Data = append(page.Data, primary.Data...)
	page.Data = append(page.Data, details...)

	return page, nil
}

// secondaryRefs fetches concurrently the token transfers and internal transactions of address.
func secondaryRefs(ctx context.Context, ds source.DataSource, address string) ([]types.TxRef, error) {
	var (
		evs []types.Event
		its []types.InternalTransaction
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		evs, err = ds.EventsByAddress(gctx, address)

		return
	})

	g.Go(func() (err error) {
		its, err = ds.InternalTransactionsByAddress(gctx, address)

		return
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	refs := make([]types.TxRef, 0, len(evs)+len(its))
	for _, e := range evs {
		refs = append(refs, e.Ref())
	}

	for _, i := range its {
		refs = append(refs, i.Ref())
	}

	return refs, nil
}

// Reconcile returns, in first seen order and without duplicates, the hashes of the refs that belong to address, are
// at or above blockNumber and are not already in primary.
func Reconcile(primary []types.Transaction, refs []types.TxRef, address string, blockNumber uint64) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, tx := range primary {
		seen.Add(util.Lower(tx.Hash))
	}

	hashes := []string{}

	for _, r := range refs {
		if !util.SameAddress(r.From, address) && !util.SameAddress(r.To, address) {
			continue
		}

		if r.BlockNumber < blockNumber {
			continue
		}

		// Add reports false when the hash is in primary or was already taken
		if seen.Add(util.Lower(r.TransactionHash)) {
			hashes = append(hashes, r.TransactionHash)
		}
	}

	return hashes
}

// details fetches the transactions of hashes with a bounded number of concurrent requests. Transactions that cannot
// be fetched are left out. The order of hashes is kept.
func (s *Service) details(ctx context.Context, ds source.DataSource, hashes []string) []types.Transaction {
	if len(hashes) == 0 {
		return nil
	}

	res := make([]*types.Transaction, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, h := range hashes {
		i, h := i, h

		g.Go(func() error {
			tx, err := ds.Transaction(gctx, h)
			if err != nil {
				log.Debug("cannot fetch transaction", zap.String("hash", h), zap.Error(err))

				return nil
			}

			res[i] = &tx

			return nil
		})
	}

	_ = g.Wait()

	txs := make([]types.Transaction, 0, len(hashes))

	for _, tx := range res {
		if tx != nil {
			txs = append(txs, *tx)
		}
	}

	return txs
}
