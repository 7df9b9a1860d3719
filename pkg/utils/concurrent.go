package utils

import (
	"context"
	"sync"
)

// ExecuteWithResults runs every function concurrently, at most
// maxConcurrency at a time, and returns results and errors positionally.
// A panic inside a function surfaces as a PanicError in its slot instead
// of taking the process down. Cancelling ctx fails the functions still
// waiting for a slot with ctx.Err(); functions already running finish.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(slot int, fn func() (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[slot] = err
			})

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[slot] = ctx.Err()
				return
			}

			results[slot], errs[slot] = fn()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// Worker processes one item.
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool fans a slice of items out over a fixed number of worker
// goroutines. Workers drain a shared channel and exit when it empties or
// the context is cancelled; ProcessItems blocks until every worker has
// stopped. Panics in a worker land in that item's error slot.
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = GetSemaphoreLimit()
	}
	return &WorkerPool[T, R]{numWorkers: numWorkers, worker: worker}
}

// ProcessItems runs the worker over items and returns results and errors
// positionally. Items left unprocessed after cancellation keep zero
// results and nil errors.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	type job struct {
		item T
		slot int
	}
	jobs := make(chan job, len(items))
	for i, item := range items {
		jobs <- job{item: item, slot: i}
	}
	close(jobs)

	results := make([]R, len(items))
	errs := make([]error, len(items))
	var wg sync.WaitGroup

	for range wp.numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case j, ok := <-jobs:
					if !ok {
						return
					}
					func() {
						defer RecoverWithCallback(func(err error) {
							errs[j.slot] = err
						})
						results[j.slot], errs[j.slot] = wp.worker(ctx, j.item)
					}()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Wait()
	return results, errs
}
