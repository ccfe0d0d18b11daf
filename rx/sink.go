package rx

import (
	"context"
	"sync"
)

// ===== sinks =====

// ForEach subscribes f and blocks until src terminates or ctx is done. A
// done ctx unsubscribes from src.
func ForEach[T any](ctx context.Context, src Observable[T], f func(T)) error {
	done := make(chan error, 1)
	sub := src.Subscribe(ObserverFuncs[T]{
		OnNext: f,
		OnError: func(err error) {
			done <- err
		},
		OnComplete: func() {
			done <- nil
		},
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		sub.Unsubscribe()
		return ctx.Err()
	}
}

// Collect gathers every value of src. On error or cancellation it returns the
// values received so far together with the error.
func Collect[T any](ctx context.Context, src Observable[T]) ([]T, error) {
	var m sync.Mutex
	slice := make([]T, 0)
	err := ForEach(ctx, src, func(v T) {
		m.Lock()
		defer m.Unlock()
		slice = append(slice, v)
	})
	m.Lock()
	defer m.Unlock()
	return slice, err
}
