package rx

import (
	"sync"
	"time"
)

// EventTarget is the host event source, e.g. rxflow.EventEmitter.
type EventTarget[E any] interface {
	AddEventListener(name string, listener func(E)) (remove func())
}

// ===== sources =====

func From[T any](slice []T) Observable[T] {
	return Create(func(s Subscriber[T]) Teardown {
		for _, v := range slice {
			if s.Closed() {
				return nil
			}
			s.Next(v)
		}
		s.Complete()
		return nil
	})
}

func Of[T any](values ...T) Observable[T] {
	return From(values)
}

func Empty[T any]() Observable[T] {
	return Create(func(s Subscriber[T]) Teardown {
		s.Complete()
		return nil
	})
}

func Never[T any]() Observable[T] {
	return Create(func(Subscriber[T]) Teardown {
		return nil
	})
}

func Throw[T any](err error) Observable[T] {
	return Create(func(s Subscriber[T]) Teardown {
		s.Error(err)
		return nil
	})
}

// Interval emits 0, 1, 2, ... every period on sched.
func Interval(sched Scheduler, period time.Duration) Observable[int] {
	return Create(func(s Subscriber[int]) Teardown {
		var m sync.Mutex
		var timer Timer
		var stopped bool
		var count int

		var tick func()
		tick = func() {
			if s.Closed() {
				return
			}
			v := count
			count++
			s.Next(v)
			if s.Closed() {
				return
			}
			next := sched.Schedule(period, tick)
			m.Lock()
			if stopped {
				m.Unlock()
				next.Stop()
				return
			}
			timer = next
			m.Unlock()
		}

		m.Lock()
		timer = sched.Schedule(period, tick)
		m.Unlock()

		return func() {
			m.Lock()
			defer m.Unlock()
			stopped = true
			timer.Stop()
		}
	})
}

// After emits 0 once d has passed, then completes.
func After(sched Scheduler, d time.Duration) Observable[int] {
	return Create(func(s Subscriber[int]) Teardown {
		timer := sched.Schedule(d, func() {
			s.Next(0)
			s.Complete()
		})
		return func() {
			timer.Stop()
		}
	})
}

// FromEvent emits every event named name dispatched by target. It never completes.
func FromEvent[E any](target EventTarget[E], name string) Observable[E] {
	return Create(func(s Subscriber[E]) Teardown {
		return Teardown(target.AddEventListener(name, s.Next))
	})
}

// FromChan reads ch on its own goroutine and completes when ch is closed.
// Values are delivered on that goroutine.
func FromChan[T any](ch <-chan T) Observable[T] {
	return Create(func(s Subscriber[T]) Teardown {
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case v, open := <-ch:
					if !open {
						s.Complete()
						return
					}
					s.Next(v)
				}
			}
		}()
		var once sync.Once
		return func() {
			once.Do(func() { close(done) })
		}
	})
}
