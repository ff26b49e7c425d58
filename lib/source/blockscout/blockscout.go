// Package blockscout implements a data source on the Blockscout explorer API (v2 REST plus the etherscan-like
// module/action API).
package blockscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/cache"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/source"
	"github.com/tarancss/addrprof/lib/util"
)

const (
	// ID identifies this data source.
	ID = "blockscout"

	// DefaultTimeout is the timeout of every request to the explorer.
	DefaultTimeout = 15 * time.Second

	// ttls of the cached responses
	shortTTL   = time.Minute
	firstTxTTL = 15 * time.Minute
)

// Config holds the parameters of a Blockscout data source.
type Config struct {
	URL          string
	ChainID      string
	NativeSymbol string
	Timeout      time.Duration
	// TTL of the cached NFT, holder and log responses, one minute when zero.
	TTL time.Duration
	// Cache is optional, when nil every request goes upstream.
	Cache cache.Cache
}

// Blockscout is a data source on a Blockscout explorer.
type Blockscout struct {
	url    string
	chain  string
	symbol string
	client *http.Client
	cache  cache.Cache
	ttl    time.Duration
}

// New returns a Blockscout data source.
func New(c Config) *Blockscout {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.TTL <= 0 {
		c.TTL = shortTTL
	}

	if c.NativeSymbol == "" {
		c.NativeSymbol = "RBTC"
	}

	return &Blockscout{
		url:    strings.TrimSuffix(c.URL, "/"),
		chain:  c.ChainID,
		symbol: c.NativeSymbol,
		client: &http.Client{Timeout: c.Timeout},
		cache:  c.Cache,
		ttl:    c.TTL,
	}
}

// ID returns the data source identifier.
func (b *Blockscout) ID() string { return ID }

// get requests path with the query params and decodes the JSON response into v. When ttl is positive and a cache
// is configured, responses are served from and stored in the cache.
func (b *Blockscout) get(ctx context.Context, endpoint, path string, params url.Values, ttl time.Duration,
	v interface{}) error {
	u := b.url + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	useCache := ttl > 0 && b.cache != nil

	if useCache {
		if e, err := b.cache.Get(ctx, u); err == nil {
			return json.Unmarshal(e.Body, v)
		}
	}

	body, err := b.fetch(ctx, endpoint, u)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrUpstream, endpoint, err)
	}

	if useCache {
		if err = b.cache.Set(ctx, u, body, ttl); err != nil {
			log.Debug("cannot cache response", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}

	return nil
}

func (b *Blockscout) fetch(ctx context.Context, endpoint, u string) ([]byte, error) {
	defer metrics.Timer(endpoint)()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrUpstream, endpoint, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrUpstream, endpoint, resp.StatusCode)
	}

	return body, nil
}

// Tokens returns the tokens listed by the explorer (first page).
func (b *Blockscout) Tokens(ctx context.Context) ([]types.Token, error) {
	var r tokensResponse
	if err := b.get(ctx, "tokens", "/v2/tokens", nil, 0, &r); err != nil {
		return nil, err
	}

	toks := make([]types.Token, 0, len(r.Items))
	for _, t := range r.Items {
		toks = append(toks, t.token())
	}

	return toks, nil
}

// TokensByAddress returns the token balances of address. Tokens without a name are left out.
func (b *Blockscout) TokensByAddress(ctx context.Context, address string) ([]types.TokenBalance, error) {
	var r []tokenBalance
	if err := b.get(ctx, "token-balances", "/v2/addresses/"+util.Lower(address)+"/token-balances", nil, 0,
		&r); err != nil {
		return nil, err
	}

	bals := make([]types.TokenBalance, 0, len(r))

	for _, t := range r {
		if t.Token.Name == nil {
			continue
		}

		bals = append(bals, types.TokenBalance{Token: t.Token.token(), Balance: t.Value})
	}

	return bals, nil
}

// NativeBalanceByAddress returns the native coin balance of address as indexed by the explorer.
func (b *Blockscout) NativeBalanceByAddress(ctx context.Context, address string) (types.TokenBalance, error) {
	var r addressResponse
	if err := b.get(ctx, "address", "/v2/addresses/"+util.Lower(address), nil, 0, &r); err != nil {
		return types.TokenBalance{}, err
	}

	bal := new(big.Int)

	if r.CoinBalance != nil && *r.CoinBalance != "" {
		if _, ok := bal.SetString(*r.CoinBalance, 10); !ok {
			return types.TokenBalance{}, fmt.Errorf("%w: %q", types.ErrBadBalance, *r.CoinBalance)
		}
	}

	return types.NativeBalance(b.symbol, bal), nil
}

// TransactionsByAddress returns one page of the transactions of address. The explorer serves fixed size pages so
// q.Limit is advisory, and q.BlockNumber is applied on the page received. Only forward cursors are supported.
func (b *Blockscout) TransactionsByAddress(ctx context.Context, q source.TxQuery) (types.TransactionPage, error) {
	cursor, err := source.DecodeCursor(q.Next)
	if err != nil {
		return types.TransactionPage{}, err
	}

	var r transactionsResponse
	if err = b.get(ctx, "transactions", "/v2/addresses/"+util.Lower(q.Address)+"/transactions",
		source.Query(nil, cursor), 0, &r); err != nil {
		return types.TransactionPage{}, err
	}

	page := types.TransactionPage{Data: make([]types.Transaction, 0, len(r.Items))}

	for _, t := range r.Items {
		tx := t.transaction()
		if tx.BlockNumber < q.BlockNumber {
			continue
		}

		page.Data = append(page.Data, tx)
	}

	page.Next = source.EncodeCursor(r.NextPageParams)

	return page, nil
}

// EventsByAddress returns the token transfer events of address.
func (b *Blockscout) EventsByAddress(ctx context.Context, address string) ([]types.Event, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", util.Lower(address))

	var r moduleResponse[tokenTransfer]
	if err := b.get(ctx, "tokentx", "", params, 0, &r); err != nil {
		return nil, err
	}

	evs := make([]types.Event, 0, len(r.Result))
	for _, t := range r.Result {
		evs = append(evs, t.event())
	}

	return evs, nil
}

// InternalTransactionsByAddress returns the internal transactions of address (first page).
func (b *Blockscout) InternalTransactionsByAddress(ctx context.Context, address string) (
	[]types.InternalTransaction, error) {
	var r internalTransactionsResponse
	if err := b.get(ctx, "internal-transactions", "/v2/addresses/"+util.Lower(address)+"/internal-transactions",
		nil, 0, &r); err != nil {
		return nil, err
	}

	its := make([]types.InternalTransaction, 0, len(r.Items))
	for _, i := range r.Items {
		its = append(its, i.internal())
	}

	return its, nil
}

// Transaction returns the details of the transaction hash.
func (b *Blockscout) Transaction(ctx context.Context, hash string) (types.Transaction, error) {
	var r transaction
	if err := b.get(ctx, "transaction", "/v2/transactions/"+hash, nil, 0, &r); err != nil {
		return types.Transaction{}, err
	}

	if r.Hash == "" {
		return types.Transaction{}, fmt.Errorf("%w: %s", types.ErrNoTrx, hash)
	}

	return r.transaction(), nil
}

// Nft returns the information of the NFT collection at address.
func (b *Blockscout) Nft(ctx context.Context, address string) (types.Nft, error) {
	var r token
	if err := b.get(ctx, "token", "/v2/tokens/"+util.Lower(address), nil, 0, &r); err != nil {
		return types.Nft{}, err
	}

	return r.nft(), nil
}

// NftInstances returns the page of instances of the collection nft starting at cursor.
func (b *Blockscout) NftInstances(ctx context.Context, nft string, cursor types.PageParams) (
	types.NftInstancePage, error) {
	var r instancesResponse
	if err := b.get(ctx, "instances", "/v2/tokens/"+util.Lower(nft)+"/instances", source.Query(nil, cursor),
		b.ttl, &r); err != nil {
		return types.NftInstancePage{}, err
	}

	page := types.NftInstancePage{Items: make([]types.NftInstance, 0, len(r.Items)), NextPageParams: r.NextPageParams}
	for _, i := range r.Items {
		page.Items = append(page.Items, i.instance())
	}

	return page, nil
}

// EventLogsByAddressAndTopic0 returns the logs emitted by q.Address matching the topics. Without q.FromBlock the
// search starts at the block of the first transaction of the address, and an address without transactions has no
// logs.
func (b *Blockscout) EventLogsByAddressAndTopic0(ctx context.Context, q types.LogQuery) ([]types.EventLog, error) {
	from := q.FromBlock
	if from == "" {
		var err error
		if from, err = b.firstBlock(ctx, q.Address); err != nil {
			log.Warn("cannot find first transaction", zap.String("address", q.Address), zap.Error(err))

			return []types.EventLog{}, nil
		}

		if from == "" {
			return []types.EventLog{}, nil
		}
	}

	to := q.ToBlock
	if to == "" {
		to = "latest"
	}

	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", util.Lower(q.Address))
	params.Set("fromBlock", from)
	params.Set("toBlock", to)
	params.Set("topic0", q.Topic0)

	if q.Topic1 != "" && q.Topic01Opr != "" {
		params.Set("topic1", q.Topic1)
		params.Set("topic0_1_opr", q.Topic01Opr)
	}

	var r moduleResponse[types.EventLog]
	if err := b.get(ctx, "getLogs", "", params, b.ttl, &r); err != nil {
		return nil, err
	}

	if r.Result == nil {
		return []types.EventLog{}, nil
	}

	return r.Result, nil
}

// firstBlock returns the block number of the first transaction of address, "" if it has none.
func (b *Blockscout) firstBlock(ctx context.Context, address string) (string, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("sort", "asc")

	var r moduleResponse[txListItem]
	if err := b.get(ctx, "txlist", "", params, firstTxTTL, &r); err != nil {
		return "", err
	}

	if len(r.Result) == 0 {
		return "", nil
	}

	return r.Result[0].BlockNumber, nil
}

// TokenHolders returns the page of holders of token starting at cursor.
func (b *Blockscout) TokenHolders(ctx context.Context, token string, cursor types.PageParams) (
	types.TokenHolderPage, error) {
	var r holdersResponse
	if err := b.get(ctx, "holders", "/v2/tokens/"+util.Lower(token)+"/holders", source.Query(nil, cursor),
		b.ttl, &r); err != nil {
		return types.TokenHolderPage{}, err
	}

	page := types.TokenHolderPage{Items: make([]types.TokenHolder, 0, len(r.Items)), NextPageParams: r.NextPageParams}
	for _, h := range r.Items {
		page.Items = append(page.Items, types.TokenHolder{Address: h.Address.Hash, Value: h.Value, TokenID: h.TokenID})
	}

	return page, nil
}

func atou(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)

	return n
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)

	return n
}
