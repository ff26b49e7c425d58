package profiler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/addrprof/lib/block/types"
)

var errRead = errors.New("read failed")

// script returns a read func serving vals in order, an empty string means a failed read. The last value is repeated.
func script(vals ...string) (func(context.Context) (string, error), *int) {
	var (
		mu sync.Mutex
		n  int
	)

	return func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		i := n
		if i >= len(vals) {
			i = len(vals) - 1
		}
		n++

		if vals[i] == "" {
			return "", errRead
		}

		return vals[i], nil
	}, &n
}

type recorder struct {
	mu   sync.Mutex
	vals []interface{}
}

func (r *recorder) handle(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vals = append(r.vals, v)
}

func (r *recorder) get() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]interface{}{}, r.vals...)
}

func TestPollerDiff(t *testing.T) {
	read, _ := script("a", "a", "b", "b", "a")
	p := NewPoller("test", "0xabc", read, nil, time.Hour)

	rec := &recorder{}
	p.On("ch", rec.handle)

	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	defer p.Unsubscribe()

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Poll(context.Background()))
	}

	assert.Equal(t, []interface{}{"a", "b", "a"}, rec.get())

	v, ok := p.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestPollerFailure(t *testing.T) {
	read, _ := script("", "a", "", "a", "b")
	p := NewPoller("test", "0xabc", read, nil, time.Hour)

	rec := &recorder{}
	p.On("ch", rec.handle)

	// the first tick fails and emits nothing
	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	defer p.Unsubscribe()

	_, ok := p.Snapshot()
	assert.False(t, ok)

	assert.NoError(t, p.Poll(context.Background()))
	assert.ErrorIs(t, p.Poll(context.Background()), errRead)
	assert.NoError(t, p.Poll(context.Background()))
	assert.NoError(t, p.Poll(context.Background()))

	assert.Equal(t, []interface{}{"a", "b"}, rec.get())
}

func TestPollerEqual(t *testing.T) {
	read, _ := script("A", "a", "B")
	same := func(a, b string) bool { return a == b || (len(a) == 1 && len(b) == 1 && a[0]|0x20 == b[0]|0x20) }
	p := NewPoller("test", "0xabc", read, same, time.Hour)

	rec := &recorder{}
	p.On("ch", rec.handle)

	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	p.Refresh()
	p.Refresh()
	p.Unsubscribe()

	assert.Equal(t, []interface{}{"A", "B"}, rec.get())
}

func TestPollerUnsubscribe(t *testing.T) {
	read, n := script("a")
	p := NewPoller("test", "0xabc", read, nil, time.Hour)

	// before Subscribe
	p.Unsubscribe()

	rec := &recorder{}
	p.On("ch", rec.handle)

	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	assert.Equal(t, 1, *n)

	p.Unsubscribe()
	p.Unsubscribe()

	// nothing runs after Unsubscribe
	assert.NoError(t, p.Poll(context.Background()))
	p.Refresh()
	assert.Equal(t, 1, *n)
	assert.Len(t, rec.get(), 1)

	assert.ErrorIs(t, NewPoller("test", "", read, nil, 0).Subscribe(context.Background(), "ch"),
		types.ErrEmptyAddress)
}

func TestPollerTicker(t *testing.T) {
	var (
		mu sync.Mutex
		n  int
	)

	read := func(context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		n++

		return n, nil
	}

	p := NewPoller("test", "0xabc", read, nil, 5*time.Millisecond)

	rec := &recorder{}
	p.On("ch", rec.handle)

	require.NoError(t, p.Subscribe(context.Background(), "ch"))
	assert.Eventually(t, func() bool { return len(rec.get()) >= 3 }, time.Second, time.Millisecond)

	p.Unsubscribe()
	got := len(rec.get())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, got, len(rec.get()))
}

func TestPollerLateResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	first := true
	read := func(ctx context.Context) (string, error) {
		if first {
			first = false

			return "a", nil
		}

		started <- struct{}{}
		<-release

		return "b", nil
	}

	p := NewPoller("test", "0xabc", read, nil, time.Hour)

	rec := &recorder{}
	p.On("ch", rec.handle)

	require.NoError(t, p.Subscribe(context.Background(), "ch"))

	done := make(chan struct{})

	go func() {
		defer close(done)
		p.Refresh()
	}()

	<-started
	p.Unsubscribe()
	close(release)
	<-done

	// the read of the cancelled subscription is dropped
	assert.Equal(t, []interface{}{"a"}, rec.get())
}
