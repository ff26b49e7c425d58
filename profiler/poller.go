package profiler

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/emitter"
	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/metrics"
)

// DefaultInterval is the time between two ticks of a poller.
const DefaultInterval = 10 * time.Second

// Poller reads a value of an address at a fixed interval and emits it on its channel when it differs from the last
// value emitted (its snapshot). A failed read emits nothing and keeps the snapshot.
//
// Emission happens under the poller lock, so handlers registered with On must not call Subscribe, Refresh or
// Unsubscribe of the same poller.
type Poller[T any] struct {
	kind     string
	address  string
	read     func(ctx context.Context) (T, error)
	equal    func(a, b T) bool
	interval time.Duration

	e emitter.Emitter

	mu      sync.Mutex
	channel string
	running bool
	gen     uint64 // incremented on every Subscribe and Unsubscribe
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	snap    T
	has     bool
}

// NewPoller returns a poller of kind for address. equal defaults to reflect.DeepEqual and interval to
// DefaultInterval.
func NewPoller[T any](kind, address string, read func(ctx context.Context) (T, error), equal func(a, b T) bool,
	interval time.Duration) *Poller[T] {
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller[T]{
		kind:     kind,
		address:  address,
		read:     read,
		equal:    equal,
		interval: interval,
	}
}

// Kind returns the kind of the poller (ie. balances).
func (p *Poller[T]) Kind() string { return p.kind }

// On registers h on channel.
func (p *Poller[T]) On(channel string, h emitter.Handler) (unregister func()) {
	return p.e.Register(channel, h)
}

// Subscribe starts polling and emitting on channel. The first tick runs before Subscribe returns, the following ones
// run in a goroutine every interval until Unsubscribe is called or ctx is done. Subscribing a running poller does
// nothing.
func (p *Poller[T]) Subscribe(ctx context.Context, channel string) error {
	if p.address == "" {
		return types.ErrEmptyAddress
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()

		return nil
	}

	p.gen++
	p.running = true
	p.channel = channel
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	gen, sctx, done := p.gen, p.ctx, p.done
	p.mu.Unlock()

	_ = p.tick(sctx, gen)

	go p.loop(sctx, gen, done)

	return nil
}

func (p *Poller[T]) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = p.tick(ctx, gen)
		}
	}
}

// tick reads once and emits the value if it changed. The value is dropped when the subscription gen was cancelled
// while reading.
func (p *Poller[T]) tick(ctx context.Context, gen uint64) error {
	v, err := p.read(ctx)

	metrics.Polls.WithLabelValues(p.kind, metrics.Result(err)).Inc()

	if err != nil {
		log.Debug("poll failed", zap.String("kind", p.kind), zap.String("address", p.address), zap.Error(err))

		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.gen != gen {
		return nil
	}

	if p.has && p.equal(p.snap, v) {
		return nil
	}

	p.snap, p.has = v, true

	metrics.Emissions.WithLabelValues(p.channel).Inc()
	p.e.Emit(p.channel, v)

	return nil
}

// Poll runs one tick now with ctx and returns the read error, if any. It does nothing when the poller is not
// subscribed.
func (p *Poller[T]) Poll(ctx context.Context) error {
	p.mu.Lock()
	running, gen := p.running, p.gen
	p.mu.Unlock()

	if !running {
		return nil
	}

	return p.tick(ctx, gen)
}

// Refresh runs one extra tick of the current subscription.
func (p *Poller[T]) Refresh() {
	p.mu.Lock()
	running, gen, ctx := p.running, p.gen, p.ctx
	p.mu.Unlock()

	if !running {
		return
	}

	_ = p.tick(ctx, gen)
}

// Snapshot returns the last value emitted, ok is false when nothing was emitted yet.
func (p *Poller[T]) Snapshot() (v T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.snap, p.has
}

// Unsubscribe stops the poller. No tick emits after it returns. It can be called any number of times, also before
// Subscribe.
func (p *Poller[T]) Unsubscribe() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()

		return
	}

	p.running = false
	p.gen++
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
}
