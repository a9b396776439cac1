package migrate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for every item with at most workers in flight and records
// each outcome. A panicking item is recorded as a failure.
func forEach[T any](ctx context.Context, workers int, items []T, rec *recorder, fn func(context.Context, T) itemResult) {
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					rec.add(failed(fmt.Errorf("panic: %v", p)))
				}
			}()
			rec.add(fn(ctx, item))
			return nil
		})
	}
	_ = g.Wait()
}
