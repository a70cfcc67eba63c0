// Package flow provides a small push-based stream abstraction used to observe
// the local store and compose live queries.
//
// A [Flow] is cold: nothing happens until it is collected, and every
// collection runs the producer from scratch. Collection blocks until the
// producer completes, fails, or the context is cancelled. Emissions to a
// single collector are sequential, and emit is never called after the flow
// returns.
package flow

import (
	"context"
	"errors"
	"sync"
)

// ErrNoValue is returned by [First] when a flow completes without emitting.
var ErrNoValue = errors.New("flow completed without a value")

// Flow is a cold stream of values of type T.
type Flow[T any] func(ctx context.Context, emit func(T)) error

// Collect runs the flow, calling emit for each value.
func (f Flow[T]) Collect(ctx context.Context, emit func(T)) error {
	return f(ctx, emit)
}

// Of returns a flow that emits values in order and completes.
func Of[T any](values ...T) Flow[T] {
	return func(ctx context.Context, emit func(T)) error {
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(v)
		}
		return nil
	}
}

// Map transforms every value of f with fn.
func Map[A, B any](f Flow[A], fn func(A) B) Flow[B] {
	return func(ctx context.Context, emit func(B)) error {
		return f(ctx, func(a A) { emit(fn(a)) })
	}
}

// DistinctUntilChanged drops values equal to the previously emitted one.
func DistinctUntilChanged[T any](f Flow[T], equal func(a, b T) bool) Flow[T] {
	return func(ctx context.Context, emit func(T)) error {
		var last T
		var has bool
		return f(ctx, func(v T) {
			if has && equal(last, v) {
				return
			}
			last, has = v, true
			emit(v)
		})
	}
}

// First collects f until its first value and returns it.
func First[T any](ctx context.Context, f Flow[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		value T
		got   bool
	)
	err := f(ctx, func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if got {
			return
		}
		value, got = v, true
		cancel()
	})

	mu.Lock()
	defer mu.Unlock()
	if got {
		return value, nil
	}
	if err == nil {
		err = ErrNoValue
	}
	return value, err
}

// SwitchMap maps each value of f to an inner flow and mirrors only the most
// recent one. A new upstream value cancels the previous inner collection and
// waits for it to return before the next one starts, so no stale value is
// emitted after a switch.
func SwitchMap[A, B any](f Flow[A], fn func(A) Flow[B]) Flow[B] {
	return func(parent context.Context, emit func(B)) error {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		var (
			emitMu      sync.Mutex
			innerCancel context.CancelFunc
			innerDone   chan struct{}
			innerErr    = make(chan error, 1)
		)

		stopInner := func() {
			if innerCancel == nil {
				return
			}
			innerCancel()
			<-innerDone
			innerCancel, innerDone = nil, nil
		}

		err := f(ctx, func(a A) {
			stopInner()

			inner := fn(a)
			ictx, icancel := context.WithCancel(ctx)
			done := make(chan struct{})
			innerCancel, innerDone = icancel, done

			go func() {
				defer close(done)
				err := inner(ictx, func(b B) {
					emitMu.Lock()
					defer emitMu.Unlock()
					if ictx.Err() != nil {
						return
					}
					emit(b)
				})
				if err != nil && ictx.Err() == nil {
					select {
					case innerErr <- err:
					default:
					}
					cancel()
				}
			}()
		})

		if err != nil {
			stopInner()
			select {
			case ierr := <-innerErr:
				return ierr
			default:
			}
			return err
		}

		// Upstream completed: the flow lives as long as the last inner one.
		if innerDone != nil {
			<-innerDone
			innerCancel()
		}
		select {
		case ierr := <-innerErr:
			return ierr
		default:
		}
		return parent.Err()
	}
}

// CombineLatest collects every flow concurrently and emits a snapshot of
// their latest values once each has emitted at least once, then again on
// every change. It completes when all inputs complete and fails as soon as
// one input fails.
func CombineLatest[T any](flows ...Flow[T]) Flow[[]T] {
	return func(parent context.Context, emit func([]T)) error {
		n := len(flows)
		if n == 0 {
			emit([]T{})
			return nil
		}

		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		var (
			mu        sync.Mutex
			values    = make([]T, n)
			seen      = make([]bool, n)
			remaining = n
			wg        sync.WaitGroup
			errs      = make(chan error, n)
		)

		for i, f := range flows {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f(ctx, func(v T) {
					mu.Lock()
					defer mu.Unlock()
					if ctx.Err() != nil {
						return
					}
					values[i] = v
					if !seen[i] {
						seen[i] = true
						remaining--
					}
					if remaining == 0 {
						out := make([]T, n)
						copy(out, values)
						emit(out)
					}
				})
				if err != nil && ctx.Err() == nil {
					errs <- err
					cancel()
				}
			}()
		}
		wg.Wait()

		select {
		case err := <-errs:
			return err
		default:
		}
		return parent.Err()
	}
}
