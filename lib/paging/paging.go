// Package paging walks cursor paginated upstream listings with a bounded number of requests.
package paging

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/block/types"
	"github.com/tarancss/addrprof/lib/log"
)

// DefaultHops is the number of requests a walk performs at most when no bound is given.
const DefaultHops = 10

// Page is one page of a listing and the cursor to the next one. Next is nil on the final page.
type Page[T any] struct {
	Items []T
	Next  types.PageParams
}

// Fetch requests the page starting at cursor. The first request of a walk gets a nil cursor.
type Fetch[T any] func(ctx context.Context, cursor types.PageParams) (Page[T], error)

// Walk follows the cursors returned by fetch, accumulating items oldest page first. Every request counts as one
// hop, the first one included, so at most hops requests are made. The walk stops when a page has no cursor, the
// hop bound is reached, a request fails, the context is done or the upstream returns the cursor it was just given.
// final is the last cursor seen, nil when the listing was exhausted or a request failed.
func Walk[T any](ctx context.Context, fetch Fetch[T], hops int) (items []T, final types.PageParams) {
	if hops <= 0 {
		hops = DefaultHops
	}

	var cursor types.PageParams

	for hop := 0; hop < hops; hop++ {
		if ctx.Err() != nil {
			return items, cursor
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			log.Debug("page fetch failed, ending walk", zap.Int("hop", hop), zap.Error(err))

			return items, nil
		}

		items = append(items, page.Items...)

		if page.Next == nil {
			return items, nil
		}

		if cursor != nil && reflect.DeepEqual(cursor, page.Next) {
			log.Debug("upstream repeated a cursor, ending walk", zap.Int("hop", hop))

			return items, page.Next
		}

		cursor = page.Next
	}

	return items, cursor
}
