// Package price keeps the latest token prices per fiat currency and refreshes them on a schedule.
package price

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tarancss/addrprof/lib/emitter"
	"github.com/tarancss/addrprof/lib/util"
)

// ErrCurrency is returned when prices are requested in a currency the store does not hold.
var ErrCurrency = errors.New("currency not supported")

// DefaultCurrency is the currency prices are served in when none is given.
const DefaultCurrency = "USD"

const refreshChannel = "refresh"

// Price is the last known price of a token.
type Price struct {
	Price       decimal.Decimal `json:"price"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Prices maps lowercase token addresses to their price.
type Prices map[string]Price

// Equal reports whether p and o hold the same prices.
func (p Prices) Equal(o Prices) bool {
	if len(p) != len(o) {
		return false
	}

	for k, a := range p {
		b, ok := o[k]
		if !ok || !a.Price.Equal(b.Price) || !a.LastUpdated.Equal(b.LastUpdated) {
			return false
		}
	}

	return true
}

// Store holds the prices of every currency. The whole set is replaced on each update, readers never see a partial
// refresh.
type Store struct {
	def    string
	prices atomic.Pointer[map[string]Prices]
	e      emitter.Emitter
}

// NewStore returns an empty store whose default currency is def (ie. USD).
func NewStore(def string) *Store {
	s := &Store{def: strings.ToUpper(def)}
	m := make(map[string]Prices)
	s.prices.Store(&m)

	return s
}

// Default returns the default currency.
func (s *Store) Default() string { return s.def }

// Update replaces the prices of currency. Subscribers are notified when the default currency prices changed.
func (s *Store) Update(currency string, p Prices) {
	currency = strings.ToUpper(currency)

	for {
		old := s.prices.Load()

		m := make(map[string]Prices, len(*old)+1)
		for k, v := range *old {
			m[k] = v
		}

		m[currency] = p

		if !s.prices.CompareAndSwap(old, &m) {
			continue
		}

		if currency == s.def && !(*old)[currency].Equal(p) {
			s.e.Emit(refreshChannel, p)
		}

		return
	}
}

// Prices returns the prices in the default currency.
func (s *Store) Prices() Prices {
	p := (*s.prices.Load())[s.def]
	if p == nil {
		return Prices{}
	}

	return p
}

// GetPrices returns the prices of addresses in currency. Every price is returned when addresses is empty.
func (s *Store) GetPrices(addresses []string, currency string) (Prices, error) {
	p, ok := (*s.prices.Load())[strings.ToUpper(currency)]
	if !ok {
		return nil, ErrCurrency
	}

	if len(addresses) == 0 {
		return p, nil
	}

	res := make(Prices, len(addresses))

	for _, a := range addresses {
		a = util.Lower(a)
		if v, ok := p[a]; ok {
			res[a] = v
		}
	}

	return res, nil
}

// Subscribe calls fn with the default currency prices every time they change. The returned function cancels the
// subscription.
func (s *Store) Subscribe(fn func(Prices)) (cancel func()) {
	return s.e.Register(refreshChannel, func(payload interface{}) {
		fn(payload.(Prices))
	})
}
