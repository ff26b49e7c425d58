// Package source defines the interface every indexer (data source) of a chain must implement. Everything the
// profiler and the address service read about an address, except the node balance, comes through it.
package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/tarancss/addrprof/lib/block/types"
)

// DataSource defines the methods an indexer must implement. Every method fails by returning an error, never by
// returning an empty value.
type DataSource interface {
	ID() string
	Tokens(ctx context.Context) ([]types.Token, error)
	TokensByAddress(ctx context.Context, address string) ([]types.TokenBalance, error)
	NativeBalanceByAddress(ctx context.Context, address string) (types.TokenBalance, error)
	TransactionsByAddress(ctx context.Context, q TxQuery) (types.TransactionPage, error)
	EventsByAddress(ctx context.Context, address string) ([]types.Event, error)
	InternalTransactionsByAddress(ctx context.Context, address string) ([]types.InternalTransaction, error)
	Transaction(ctx context.Context, hash string) (types.Transaction, error)
	Nft(ctx context.Context, address string) (types.Nft, error)
	NftInstances(ctx context.Context, nft string, cursor types.PageParams) (types.NftInstancePage, error)
	EventLogsByAddressAndTopic0(ctx context.Context, q types.LogQuery) ([]types.EventLog, error)
	TokenHolders(ctx context.Context, token string, cursor types.PageParams) (types.TokenHolderPage, error)
}

// TxQuery selects a page of the direct transactions of an address. Next and Prev are the opaque cursors returned
// with a previous page. BlockNumber is an inclusive lower bound.
type TxQuery struct {
	Address     string
	Limit       int
	Prev        string
	Next        string
	BlockNumber uint64
}

// EncodeCursor serializes an upstream cursor for clients. A nil cursor encodes to "".
func EncodeCursor(p types.PageParams) string {
	if p == nil {
		return ""
	}

	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a cursor built with EncodeCursor. An empty string decodes to nil.
func DecodeCursor(s string) (types.PageParams, error) {
	if s == "" {
		return nil, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad cursor: %w", err)
	}

	var p types.PageParams
	if err = json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("bad cursor: %w", err)
	}

	return p, nil
}

// Query adds the cursor p to v as query parameters. Null values are left out.
func Query(v url.Values, p types.PageParams) url.Values {
	if v == nil {
		v = url.Values{}
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		switch x := p[k].(type) {
		case nil:
		case string:
			v.Set(k, x)
		case float64:
			v.Set(k, strconv.FormatFloat(x, 'f', -1, 64))
		case json.Number:
			v.Set(k, x.String())
		default:
			v.Set(k, fmt.Sprint(x))
		}
	}

	return v
}
