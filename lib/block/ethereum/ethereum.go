// Package ethereum implements a node provider for ethereum-type chains (ie. RSK).
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/tarancss/ethcli"
)

// Ethereum implements a connection to an ethereum-type node.
type Ethereum struct {
	c *ethcli.EthCli
}

// ErrConnect is returned when the node client cannot be created.
var ErrConnect = errors.New("cannot connect to ethereum node")

// Init returns a connection to an ethereum node, using secret if necessary for authentication.
func Init(node, secret string) (*Ethereum, error) {
	c := ethcli.Init(node, secret)
	if c == nil {
		return nil, fmt.Errorf("%w in %s", ErrConnect, node)
	}

	return &Ethereum{c: c}, nil
}

// Close ends a connection
func (e *Ethereum) Close() {
	e.c.End()
}

// Balance returns the native coin balance of address. The node client is not context aware, so a cancelled context
// only stops waiting for the result.
func (e *Ethereum) Balance(ctx context.Context, address string) (*big.Int, error) {
	type result struct {
		bal *big.Int
		err error
	}

	ch := make(chan result, 1)

	go func() {
		bal, _, err := e.c.GetBalance(address, "")
		ch <- result{bal: bal, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("cannot get balance of %s: %w", address, r.err)
		}

		return r.bal, nil
	}
}
