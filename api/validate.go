package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/addrprof/address"
	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/price"
)

// Errors returned to client requests.
var (
	ErrBadAddress  = errors.New("an address is invalid")
	ErrBadChain    = errors.New("the current chainId is not supported")
	ErrBadCurrency = errors.New("the current currency is not supported")
	ErrBadTopic    = errors.New("topics must start with 0x and be 66 characters long")
	ErrBadOperator = errors.New(`topic01Opr must be either "and" or "or"`)
	ErrBadNumber   = errors.New("limit and blockNumber must be positive integers")
	ErrNoTraceID   = errors.New("x-trace-id is required")
	ErrBadMessage  = errors.New("bad message")
	ErrInternal    = errors.New("internal error")
)

// badRequest are the errors replied with http.StatusBadRequest.
var badRequest = []error{ //nolint:gochecknoglobals // read only
	ErrBadAddress, ErrBadChain, ErrBadCurrency, ErrBadTopic, ErrBadOperator, ErrBadNumber, ErrBadMessage,
	price.ErrCurrency,
}

// status returns the http status of err and the error message the client can see. Upstream failures are not
// detailed.
func status(err error) (int, string) {
	for _, e := range badRequest {
		if errors.Is(err, e) {
			return http.StatusBadRequest, err.Error()
		}
	}

	if address.IsSetupError(err) {
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, ErrInternal.Error()
}

// chainID returns the chain of the request, address.DefaultChainID when none is given.
func (a *API) chainID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = address.DefaultChainID
	}

	if _, err := a.svc.Source(s); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadChain, s)
	}

	return s, nil
}

func checkAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(strings.ToLower(s)) {
		return "", ErrBadAddress
	}

	return s, nil
}

func currency(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return price.DefaultCurrency, nil
	}

	if !price.IsSupported(s) {
		return "", ErrBadCurrency
	}

	return strings.ToUpper(s), nil
}

// topic checks t, an empty t is accepted when optional.
func topic(t string, optional bool) error {
	if t == "" && optional {
		return nil
	}

	if !strings.HasPrefix(t, "0x") || len(t) != 66 { //nolint:gomnd // 0x + 32 bytes
		return fmt.Errorf("%w: %q", ErrBadTopic, t)
	}

	return nil
}

func logQuery(addr string, r *http.Request) (types.LogQuery, error) {
	q := types.LogQuery{
		Address:    addr,
		Topic0:     strings.TrimSpace(r.FormValue("topic0")),
		Topic1:     strings.TrimSpace(r.FormValue("topic1")),
		Topic01Opr: r.FormValue("topic01Opr"),
		FromBlock:  r.FormValue("fromBlock"),
		ToBlock:    r.FormValue("toBlock"),
	}

	if err := topic(q.Topic0, false); err != nil {
		return q, err
	}

	// a topic1 parameter, even empty, must be valid
	if _, ok := r.Form["topic1"]; ok {
		if err := topic(q.Topic1, false); err != nil {
			return q, err
		}
	}

	if q.Topic01Opr != "" && q.Topic01Opr != "and" && q.Topic01Opr != "or" {
		return q, ErrBadOperator
	}

	return q, nil
}

// number parses a non negative integer, def is returned for an empty s.
func number(s string, def uint64) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	return n, nil
}

// txQuery builds the transactions query of addr from the request parameters.
func txQuery(chainID, addr string, r *http.Request) (address.TxQuery, error) {
	q := address.TxQuery{ChainID: chainID}
	q.Address = addr
	q.Prev = r.FormValue("prev")
	q.Next = r.FormValue("next")

	limit, err := number(r.FormValue("limit"), 0)
	if err != nil {
		return q, err
	}

	q.Limit = int(limit)

	if q.BlockNumber, err = number(r.FormValue("blockNumber"), 0); err != nil {
		return q, err
	}

	return q, nil
}

// cursor returns the query parameters of r, but chainId, as an upstream cursor. nil when there are none.
func cursor(r *http.Request) types.PageParams {
	var p types.PageParams

	for k, v := range r.URL.Query() {
		if k == "chainId" || len(v) == 0 {
			continue
		}

		if p == nil {
			p = types.PageParams{}
		}

		p[k] = v[0]
	}

	return p
}
