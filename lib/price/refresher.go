package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/util"
)

// Fetcher fetches the current prices in a currency.
type Fetcher interface {
	Fetch(ctx context.Context, currency string) (Prices, error)
}

// fetchTimeout bounds one refresh of one currency.
const fetchTimeout = 30 * time.Second

// Refresher is the cron job that refreshes the store with the prices of every currency.
type Refresher struct {
	store      *Store
	fetcher    Fetcher
	currencies []string
	c          *cron.Cron
}

// NewRefresher returns a refresher of the store. The default currency of the store is always refreshed.
func NewRefresher(store *Store, fetcher Fetcher, currencies []string) *Refresher {
	cs := []string{store.Default()}

	for _, c := range currencies {
		c = strings.ToUpper(c)
		if IsSupported(c) && !util.In(cs, c) {
			cs = append(cs, c)
		}
	}

	return &Refresher{store: store, fetcher: fetcher, currencies: cs}
}

// Run refreshes every currency once. A failed fetch keeps the prices the store already holds.
func (r *Refresher) Run() {
	for _, c := range r.currencies {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		p, err := r.fetcher.Fetch(ctx, c)
		cancel()

		metrics.PriceRefresh.WithLabelValues(metrics.Result(err)).Inc()

		if err != nil {
			log.Warn("price refresh failed", zap.String("currency", c), zap.Error(err))

			continue
		}

		r.store.Update(c, p)
	}
}

// Start refreshes the prices and schedules the next refreshes with the cron spec (ie. "@every 60s").
func (r *Refresher) Start(spec string) error {
	r.c = cron.New()

	if _, err := r.c.AddJob(spec, r); err != nil {
		return fmt.Errorf("bad price schedule %q: %w", spec, err)
	}

	r.Run()
	r.c.Start()

	return nil
}

// Stop stops the schedule and waits for a running refresh to end.
func (r *Refresher) Stop() {
	if r.c == nil {
		return
	}

	<-r.c.Stop().Done()
}
