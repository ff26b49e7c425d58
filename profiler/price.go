package profiler

import (
	"sync"

	"github.com/tarancss/addrprof/lib/emitter"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/price"
)

// PriceProvider re-emits the price refreshes of a store. It does not poll, the store notifies it only when the prices
// of its default currency changed.
type PriceProvider struct {
	store *price.Store
	e     emitter.Emitter

	mu     sync.Mutex
	cancel func()
}

// NewPriceProvider returns a price provider reading from store.
func NewPriceProvider(store *price.Store) *PriceProvider {
	return &PriceProvider{store: store}
}

// On registers h on channel.
func (pp *PriceProvider) On(channel string, h emitter.Handler) (unregister func()) {
	return pp.e.Register(channel, h)
}

// Subscribe starts emitting the refreshed prices on channel. Subscribing twice does nothing.
func (pp *PriceProvider) Subscribe(channel string) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.cancel != nil {
		return
	}

	pp.cancel = pp.store.Subscribe(func(p price.Prices) {
		metrics.Emissions.WithLabelValues(channel).Inc()
		pp.e.Emit(channel, p)
	})
}

// Unsubscribe stops the notifications. It is idempotent.
func (pp *PriceProvider) Unsubscribe() {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.cancel != nil {
		pp.cancel()
		pp.cancel = nil
	}
}
