package rx

import (
	"context"
	"errors"
	"sync"
)

var ErrEmpty = errors.New("observable completed without a value")

type result[T any] struct {
	value T
	err   error
}

// First blocks until src emits its first value, then unsubscribes.
func First[T any](ctx context.Context, src Observable[T]) (T, error) {
	results := make(chan result[T], 1)
	send := func(r result[T]) {
		select {
		case results <- r:
		default:
		}
	}

	sub := src.Subscribe(ObserverFuncs[T]{
		OnNext: func(v T) {
			send(result[T]{value: v})
		},
		OnError: func(err error) {
			send(result[T]{err: err})
		},
		OnComplete: func() {
			send(result[T]{err: ErrEmpty})
		},
	})
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		var t0 T
		return t0, ctx.Err()
	case res := <-results:
		return res.value, res.err
	}
}

// Last blocks until src completes and returns its final value.
func Last[T any](ctx context.Context, src Observable[T]) (T, error) {
	var m sync.Mutex
	var last T
	var seen bool
	err := ForEach(ctx, src, func(v T) {
		m.Lock()
		defer m.Unlock()
		last = v
		seen = true
	})
	m.Lock()
	defer m.Unlock()
	if err != nil {
		return last, err
	}
	if !seen {
		return last, ErrEmpty
	}
	return last, nil
}
