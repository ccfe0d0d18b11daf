package rx

import (
	"sync"
	"time"

	delay "github.com/ipfs/go-ipfs-delay"
)

// Delay shifts every value by d on sched. Completion is forwarded after the
// last pending value; errors are forwarded at once.
func Delay[T any](sched Scheduler, d time.Duration) Operator[T, T] {
	return DelayWith[T](sched, delay.Fixed(d))
}

// DelayWith asks d for a fresh wait time per value. Each value is scheduled
// on its own, so a later value with a shorter wait overtakes earlier ones.
func DelayWith[T any](sched Scheduler, d delay.D) Operator[T, T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(s Subscriber[T]) Teardown {
			var m sync.Mutex
			timers := make(map[uint64]Timer)
			var seq uint64
			var upstreamDone bool

			up := src.Subscribe(ObserverFuncs[T]{
				OnNext: func(v T) {
					m.Lock()
					defer m.Unlock()
					if s.Closed() {
						return
					}
					seq++
					id := seq
					timers[id] = sched.Schedule(d.NextWaitTime(), func() {
						m.Lock()
						delete(timers, id)
						finish := upstreamDone && len(timers) == 0
						m.Unlock()
						s.Next(v)
						if finish {
							s.Complete()
						}
					})
				},
				OnError: s.Error,
				OnComplete: func() {
					m.Lock()
					upstreamDone = true
					idle := len(timers) == 0
					m.Unlock()
					if idle {
						s.Complete()
					}
				},
			})

			return func() {
				up.Unsubscribe()
				m.Lock()
				defer m.Unlock()
				for id, t := range timers {
					t.Stop()
					delete(timers, id)
				}
			}
		})
	}
}
