// Package coinmarketcap fetches token prices from the CoinMarketCap quotes API.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tarancss/addrprof/lib/config"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/price"
	"github.com/tarancss/addrprof/lib/util"
)

// Error codes.
var (
	ErrNoIDs    = errors.New("no coinmarketcap ids configured")
	ErrResponse = errors.New("coinmarketcap request failed")
)

// Client implements price.Fetcher.
type Client struct {
	url     string
	version string
	key     string
	ids     string
	tokens  map[string][]string // coinmarketcap id to token addresses
	client  *http.Client
}

type quote struct {
	Price       decimal.Decimal `json:"price"`
	LastUpdated time.Time       `json:"last_updated"`
}

type quotesResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		ID    int              `json:"id"`
		Quote map[string]quote `json:"quote"`
	} `json:"data"`
}

// New returns a CoinMarketCap client for the tokens of c.IDs.
func New(c config.PriceConfig) (*Client, error) {
	if len(c.IDs) == 0 {
		return nil, ErrNoIDs
	}

	tokens := make(map[string][]string)
	for addr, id := range c.IDs {
		tokens[id] = append(tokens[id], util.Lower(addr))
	}

	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return &Client{
		url:     strings.TrimSuffix(c.URL, "/"),
		version: c.Version,
		key:     c.Key,
		ids:     strings.Join(ids, ","),
		tokens:  tokens,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Fetch returns the prices of the configured tokens in currency.
func (c *Client) Fetch(ctx context.Context, currency string) (price.Prices, error) {
	defer metrics.Timer("cmc-quotes")()

	currency = strings.ToUpper(currency)

	q := url.Values{}
	q.Set("id", c.ids)
	q.Set("convert", currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/cryptocurrency/quotes/latest?%s", c.url, c.version, q.Encode()), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponse, err)
	}
	defer resp.Body.Close()

	var r quotesResponse
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrResponse, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || r.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrResponse, resp.StatusCode, r.Status.ErrorMessage)
	}

	p := make(price.Prices)

	for id, d := range r.Data {
		qt, ok := d.Quote[currency]
		if !ok {
			continue
		}

		if id == "" {
			id = strconv.Itoa(d.ID)
		}

		for _, addr := range c.tokens[id] {
			p[addr] = price.Price{Price: qt.Price, LastUpdated: qt.LastUpdated}
		}
	}

	return p, nil
}
