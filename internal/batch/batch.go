// Package batch runs one unit of work per item with a cap on how many units
// are in flight at once. A failing unit never stops its siblings.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the provider-safe number of simultaneous units.
const DefaultLimit = 10

// Result is the terminal outcome of one item.
type Result[T, R any] struct {
	Index    int
	Item     T
	Value    R
	Err      error
	Duration time.Duration
}

// Runner fans items out to a bounded set of goroutines.
type Runner struct {
	// Limit caps concurrently running units. Values below 1 fall back to DefaultLimit.
	Limit int
	// Timeout bounds each unit when positive.
	Timeout time.Duration
}

// NewRunner creates a Runner.
func NewRunner(limit int, timeout time.Duration) Runner {
	return Runner{Limit: limit, Timeout: timeout}
}

func (r Runner) limit() int {
	if r.Limit < 1 {
		return DefaultLimit
	}
	return r.Limit
}

// Run calls fn once per item and returns when every call has finished.
// Items are admitted in slice order; results are index-aligned with items.
// Errors and panics are captured per item. Once ctx is done, items that
// have not been admitted yet are marked with ctx.Err() without calling fn.
func Run[T, R any](ctx context.Context, r Runner, items []T, fn func(ctx context.Context, item T) (R, error)) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	if len(items) == 0 {
		return results
	}

	// Plain Group: WithContext would cancel siblings on the first error.
	var g errgroup.Group
	g.SetLimit(r.limit())

	for i, item := range items {
		i, item := i, item // per-iteration copies (go 1.21 loop semantics)
		results[i].Index = i
		results[i].Item = item

		// g.Go blocks while the group is full, which keeps admission FIFO.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			start := time.Now()
			results[i].Value, results[i].Err = callUnit(ctx, r.Timeout, item, fn)
			results[i].Duration = time.Since(start)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func callUnit[T, R any](ctx context.Context, timeout time.Duration, item T, fn func(context.Context, T) (R, error)) (value R, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, item)
}

// Failed counts results that ended in an error.
func Failed[T, R any](results []Result[T, R]) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
