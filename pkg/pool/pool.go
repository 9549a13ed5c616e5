// Package pool provides a bounded-concurrency fan-out executor for batched
// upstream lookups. Output order always matches input order regardless of
// worker count or completion timing.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrWorkerPanic marks a result slot whose worker panicked.
var ErrWorkerPanic = errors.New("worker panic")

// Result holds the outcome for one input item. Exactly one of Value or Err is
// meaningful; a per-item failure never aborts the batch.
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs worker over items with at most concurrency parallel invocations
// and returns one result per item, in input order.
//
// Workers claim indices from a shared cursor; each index is claimed exactly
// once and its result written to the matching output slot. Worker errors and
// panics are captured into the slot's Err. Once ctx is cancelled, unprocessed
// slots are filled with ctx.Err() without invoking the worker.
func Map[T, R any](ctx context.Context, items []T, concurrency int, worker func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	var cursor atomic.Int64
	cursor.Store(-1)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1))
				if idx >= len(items) {
					return
				}
				if err := ctx.Err(); err != nil {
					results[idx] = Result[R]{Err: err}
					continue
				}
				results[idx] = runOne(ctx, items[idx], worker)
			}
		}()
	}
	wg.Wait()

	return results
}

// runOne invokes the worker for a single item, converting panics into an
// error result so one bad item cannot take down the batch.
func runOne[T, R any](ctx context.Context, item T, worker func(context.Context, T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Pool worker panicked")
			res = Result[R]{Err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
		}
	}()

	value, err := worker(ctx, item)
	return Result[R]{Value: value, Err: err}
}
