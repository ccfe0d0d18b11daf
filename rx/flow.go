package rx

import (
	"github.com/7vars/rxflow"
)

// Flow describes an operator by its reaction to upstream events. Nil
// handlers forward the event unchanged; OnNext must be set when T and R differ.
type Flow[T, R any] struct {
	OnNext     func(Subscriber[R], T)
	OnError    func(Subscriber[R], error)
	OnComplete func(Subscriber[R])
}

func (f Flow[T, R]) HandleNext(s Subscriber[R], v T) {
	if f.OnNext != nil {
		if err := guard(func() { f.OnNext(s, v) }); err != nil {
			s.Error(err)
		}
		return
	}
	if r, ok := any(v).(R); ok {
		s.Next(r)
	}
}

func (f Flow[T, R]) HandleError(s Subscriber[R], err error) {
	if f.OnError != nil {
		if gerr := guard(func() { f.OnError(s, err) }); gerr != nil {
			s.Error(gerr)
		}
		return
	}
	s.Error(err)
}

func (f Flow[T, R]) HandleComplete(s Subscriber[R]) {
	if f.OnComplete != nil {
		if err := guard(func() { f.OnComplete(s) }); err != nil {
			s.Error(err)
		}
		return
	}
	s.Complete()
}

// Lift builds an operator from a flow. newFlow runs once per subscription so
// flows may keep per-subscription state.
func Lift[T, R any](newFlow func() Flow[T, R]) Operator[T, R] {
	return func(src Observable[T]) Observable[R] {
		return Create(func(s Subscriber[R]) Teardown {
			flow := newFlow()
			up := src.Subscribe(ObserverFuncs[T]{
				OnNext:     func(v T) { flow.HandleNext(s, v) },
				OnError:    func(err error) { flow.HandleError(s, err) },
				OnComplete: func() { flow.HandleComplete(s) },
			})
			return up.Unsubscribe
		})
	}
}

// ===== operators =====

func Map[T, R any](f func(T) R) Operator[T, R] {
	flow := Flow[T, R]{
		OnNext: func(s Subscriber[R], v T) {
			s.Next(f(v))
		},
	}
	return Lift(func() Flow[T, R] { return flow })
}

func Filter[T any](f func(T) bool) Operator[T, T] {
	flow := Flow[T, T]{
		OnNext: func(s Subscriber[T], v T) {
			if f(v) {
				s.Next(v)
			}
		},
	}
	return Lift(func() Flow[T, T] { return flow })
}

// Tap runs the side effects of o before forwarding each event.
func Tap[T any](o ObserverFuncs[T]) Operator[T, T] {
	flow := Flow[T, T]{
		OnNext: func(s Subscriber[T], v T) {
			if o.OnNext != nil {
				o.OnNext(v)
			}
			s.Next(v)
		},
		OnError: func(s Subscriber[T], err error) {
			if o.OnError != nil {
				o.OnError(err)
			}
			s.Error(err)
		},
		OnComplete: func(s Subscriber[T]) {
			if o.OnComplete != nil {
				o.OnComplete()
			}
			s.Complete()
		},
	}
	return Lift(func() Flow[T, T] { return flow })
}

// Take forwards the first n values, then completes and unsubscribes upstream.
func Take[T any](n int) Operator[T, T] {
	return func(src Observable[T]) Observable[T] {
		if n <= 0 {
			return Empty[T]()
		}
		return Lift(func() Flow[T, T] {
			var count int
			return Flow[T, T]{
				OnNext: func(s Subscriber[T], v T) {
					count++
					if count > n {
						return
					}
					s.Next(v)
					if count == n {
						s.Complete()
					}
				},
			}
		})(src)
	}
}

func TakeWhile[T any](f func(T) bool) Operator[T, T] {
	flow := Flow[T, T]{
		OnNext: func(s Subscriber[T], v T) {
			if f(v) {
				s.Next(v)
				return
			}
			s.Complete()
		},
	}
	return Lift(func() Flow[T, T] { return flow })
}

func Skip[T any](n int) Operator[T, T] {
	return Lift(func() Flow[T, T] {
		var count int
		return Flow[T, T]{
			OnNext: func(s Subscriber[T], v T) {
				if count < n {
					count++
					return
				}
				s.Next(v)
			},
		}
	})
}

// TakeUntil mirrors src until notifier emits its first value, then completes.
func TakeUntil[T, N any](notifier Observable[N]) Operator[T, T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(s Subscriber[T]) Teardown {
			n := notifier.Subscribe(ObserverFuncs[N]{
				OnNext:  func(N) { s.Complete() },
				OnError: s.Error,
			})
			s.Add(n.Unsubscribe)
			if s.Closed() {
				return nil
			}
			return src.Subscribe(s).Unsubscribe
		})
	}
}

// Scan emits the running accumulation of every value.
func Scan[T, K any](seed K, f func(K, T) K) Operator[T, K] {
	return Lift(func() Flow[T, K] {
		acc := seed
		return Flow[T, K]{
			OnNext: func(s Subscriber[K], v T) {
				acc = f(acc, v)
				s.Next(acc)
			},
		}
	})
}

// Reduce emits the final accumulation once upstream completes.
func Reduce[T, K any](seed K, f func(K, T) K) Operator[T, K] {
	return Lift(func() Flow[T, K] {
		acc := seed
		return Flow[T, K]{
			OnNext: func(_ Subscriber[K], v T) {
				acc = f(acc, v)
			},
			OnComplete: func(s Subscriber[K]) {
				s.Next(acc)
				s.Complete()
			},
		}
	})
}

// Catch replaces an errored upstream with the observable returned by handler.
func Catch[T any](handler func(error) Observable[T]) Operator[T, T] {
	flow := Flow[T, T]{
		OnError: func(s Subscriber[T], err error) {
			s.Add(handler(err).Subscribe(s).Unsubscribe)
		},
	}
	return Lift(func() Flow[T, T] { return flow })
}

// Instrument logs subscription, values, termination and unsubscription of
// the observable it wraps.
func Instrument[T any](logger rxflow.Logger, name string) Operator[T, T] {
	log := logger.WithField("source", name)
	return func(src Observable[T]) Observable[T] {
		return Create(func(s Subscriber[T]) Teardown {
			log.Debug("subscribing")
			up := src.Subscribe(ObserverFuncs[T]{
				OnNext: func(v T) {
					log.WithField("value", v).Info("next")
					s.Next(v)
				},
				OnError: func(err error) {
					log.WithField("error", err).Warn("error")
					s.Error(err)
				},
				OnComplete: func() {
					log.Debug("complete")
					s.Complete()
				},
			})
			return func() {
				up.Unsubscribe()
				log.Debug("unsubscribed")
			}
		})
	}
}
