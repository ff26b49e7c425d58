package paging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarancss/addrprof/lib/block/types"
)

// pages serves the listing in ps, one page per request, following an "n" cursor.
func pages(ps [][]int, calls *int) Fetch[int] {
	return func(ctx context.Context, cursor types.PageParams) (Page[int], error) {
		*calls++

		i := 0
		if cursor != nil {
			i = cursor["n"].(int)
		}

		p := Page[int]{Items: ps[i]}
		if i+1 < len(ps) {
			p.Next = types.PageParams{"n": i + 1}
		}

		return p, nil
	}
}

func TestWalk(t *testing.T) {
	var tests = []struct {
		name  string
		pages [][]int
		hops  int
		items []int
		calls int
		final bool
	}{
		{"single page", [][]int{{1, 2}}, 10, []int{1, 2}, 1, false},
		{"exhausted", [][]int{{1}, {2}, {3}}, 10, []int{1, 2, 3}, 3, false},
		{"bounded", [][]int{{1}, {2}, {3}, {4}}, 2, []int{1, 2}, 2, true},
		{"default bound", [][]int{{1}, {2}}, 0, []int{1, 2}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			items, final := Walk(context.Background(), pages(tt.pages, &calls), tt.hops)
			assert.Equal(t, tt.items, items)
			assert.Equal(t, tt.calls, calls)
			assert.Equal(t, tt.final, final != nil)
		})
	}
}

func TestWalkAlwaysCursor(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor types.PageParams) (Page[int], error) {
		calls++

		return Page[int]{Items: []int{calls}, Next: types.PageParams{"n": calls}}, nil
	}

	items, final := Walk[int](context.Background(), fetch, DefaultHops)
	assert.Equal(t, DefaultHops, calls)
	assert.Len(t, items, DefaultHops)
	assert.Equal(t, types.PageParams{"n": DefaultHops}, final)
}

func TestWalkFailedPage(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor types.PageParams) (Page[int], error) {
		calls++
		if calls == 3 {
			return Page[int]{}, errors.New("502")
		}

		return Page[int]{Items: []int{calls}, Next: types.PageParams{"n": calls}}, nil
	}

	items, final := Walk[int](context.Background(), fetch, DefaultHops)
	assert.Equal(t, []int{1, 2}, items)
	assert.Nil(t, final)
	assert.Equal(t, 3, calls)
}

func TestWalkRepeatedCursor(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, cursor types.PageParams) (Page[int], error) {
		calls++

		return Page[int]{Items: []int{calls}, Next: types.PageParams{"block": 7, "index": 1}}, nil
	}

	items, _ := Walk[int](context.Background(), fetch, DefaultHops)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1, 2}, items)
}

func TestWalkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	fetch := func(ctx context.Context, cursor types.PageParams) (Page[int], error) {
		calls++
		cancel()

		return Page[int]{Items: []int{calls}, Next: types.PageParams{"n": calls}}, nil
	}

	items, _ := Walk[int](ctx, fetch, DefaultHops)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1}, items)
}
