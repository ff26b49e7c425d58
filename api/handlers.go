package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/store"
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  interface{} `json:"body"`
	Error string      `json:"error,omitempty"`
}

// reply writes body, or err when not nil, to the client.
func reply(rw http.ResponseWriter, r *http.Request, body interface{}, err error) {
	var res Response

	code := http.StatusOK

	if err != nil {
		code, res.Error = status(err)
		if code == http.StatusInternalServerError {
			log.Warn("request failed", zap.String("uri", r.RequestURI), zap.Error(err))
		}
	} else {
		res.Body = body
	}

	log.Debug("httpreq", zap.String("from", r.RemoteAddr), zap.String("uri", r.RequestURI), zap.Int("status", code))

	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(&res)
}

// addrParams validates the chainId parameter and the address in the uri.
func (a *API) addrParams(r *http.Request) (chainID, addr string, err error) {
	if chainID, err = a.chainID(r.FormValue("chainId")); err != nil {
		return
	}

	addr, err = checkAddress(mux.Vars(r)["address"])

	return
}

// homeHandler just replies a welcome message to the client.
func (a *API) homeHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, "Hello, this is your address profiler!", nil)
}

// tokensHandler replies the tokens known in the chain.
func (a *API) tokensHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	var chainID string
	if chainID, err = a.chainID(r.FormValue("chainId")); err != nil {
		return
	}

	body, err = a.svc.Tokens(r.Context(), chainID)
}

// addrTokensHandler replies the token balances of the address, native balance included.
func (a *API) addrTokensHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.TokensByAddress(r.Context(), chainID, addr)
}

// addrEventsHandler replies the token transfer events of the address.
func (a *API) addrEventsHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.EventsByAddress(r.Context(), chainID, addr)
}

// addrTxsHandler replies a page of the transactions of the address. Query: limit, prev, next, blockNumber.
func (a *API) addrTxsHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	q, err := txQuery(chainID, addr, r)
	if err != nil {
		return
	}

	body, err = a.svc.TransactionsByAddress(r.Context(), q)
}

// addrDetailsHandler replies prices, tokens and transactions of the address.
func (a *API) addrDetailsHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	q, err := txQuery(chainID, addr, r)
	if err != nil {
		return
	}

	body, err = a.svc.AddressDetails(r.Context(), q)
}

// addrNftHandler replies the instances of the nft collection owned by the address.
func (a *API) addrNftHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.NftOwnedByAddress(r.Context(), chainID, addr, mux.Vars(r)["nft"])
}

// addrLogsHandler replies the logs emitted by the address. Query: topic0, topic1, topic01Opr, fromBlock, toBlock.
func (a *API) addrLogsHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	q, err := logQuery(addr, r)
	if err != nil {
		return
	}

	body, err = a.svc.EventLogsByAddressAndTopic0(r.Context(), chainID, q)
}

// tokenHoldersHandler replies a page of holders of the token at address. The query parameters, but chainId, are
// the cursor of the page.
func (a *API) tokenHoldersHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.TokenHolders(r.Context(), chainID, addr, cursor(r))
}

// nftHandler replies the information of the nft collection at address.
func (a *API) nftHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.NftInfo(r.Context(), chainID, addr)
}

// nftHoldersHandler replies a page of instances of the nft collection at address.
func (a *API) nftHoldersHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	chainID, addr, err := a.addrParams(r)
	if err != nil {
		return
	}

	body, err = a.svc.NftHolders(r.Context(), chainID, addr, cursor(r))
}

// priceHandler replies the prices of the tokens in addresses (comma separated, every token when empty) in the
// currency convert.
func (a *API) priceHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	cur, err := currency(r.FormValue("convert"))
	if err != nil {
		return
	}

	var addrs []string

	if s := strings.TrimSpace(r.FormValue("addresses")); s != "" {
		for _, x := range strings.Split(s, ",") {
			var addr string
			if addr, err = checkAddress(x); err != nil {
				return
			}

			addrs = append(addrs, addr)
		}
	}

	body, err = a.svc.Prices(addrs, cur)
}

// latestPricesHandler replies the prices in the default currency.
func (a *API) latestPricesHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, a.svc.LatestPrices(), nil)
}

// trackedHandler replies the addresses subscribed to, of the chains given by chainId, all when none is.
func (a *API) trackedHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		body interface{}
		err  error
	)

	defer func() { reply(rw, r, body, err) }()

	if err = r.ParseForm(); err != nil {
		err = ErrBadMessage

		return
	}

	var chains []string

	for _, c := range r.Form["chainId"] {
		if c, err = a.chainID(c); err != nil {
			return
		}

		chains = append(chains, c)
	}

	if len(chains) == 0 {
		chains = a.svc.Chains()
		sort.Strings(chains)
	}

	if a.db == nil {
		body = []store.TrackedAddresses{}

		return
	}

	body, err = a.db.GetAddresses(r.Context(), chains)
}
