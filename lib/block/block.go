// Package block defines the interface required for the JSON-RPC node of every configured chain.
package block

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/block/ethereum"
	"github.com/tarancss/addrprof/lib/config"
	"github.com/tarancss/addrprof/lib/log"
)

// NodeProvider is the native chain RPC. It has been kept as small as the profiler needs, other chains only have to
// provide the native balance of an account.
type NodeProvider interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	Close()
}

// Init loads a node provider for every chain of the config that has a node url, keyed by chain id.
func Init(chains []config.ChainConfig) (map[string]NodeProvider, error) {
	m := make(map[string]NodeProvider)

	for _, c := range chains {
		if c.Node == "" {
			log.Warn("Node url not defined for chain. Ignoring...", zap.String("chainId", c.ChainID))

			continue
		}

		e, err := ethereum.Init(c.Node, c.Secret)
		if err != nil {
			End(m)

			return nil, fmt.Errorf("chain %s: %w", c.ChainID, err)
		}

		m[c.ChainID] = e
	}

	return m, nil
}

// End closes gracefully all the node providers opened.
func End(nodes map[string]NodeProvider) {
	for _, n := range nodes {
		n.Close()
	}
}
