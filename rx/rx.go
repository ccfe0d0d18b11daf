// Package rx is a push-based observable runtime: lazy event sources,
// subscriptions with idempotent teardown, operator pipelines, flattening
// strategies, schedulers and multicast subjects.
package rx

import (
	"sync"
	"sync/atomic"

	"github.com/7vars/rxflow"
)

// Teardown releases the resources of one subscription. A nil Teardown is allowed.
type Teardown func()

type Observer[T any] interface {
	Next(T)
	Error(error)
	Complete()
}

type Subscription interface {
	Unsubscribe()
	Closed() bool
}

type Observable[T any] interface {
	Subscribe(Observer[T]) Subscription
}

// Subscriber is handed to producers. It drops every event after the first
// terminal event or after Unsubscribe.
type Subscriber[T any] interface {
	Observer[T]
	Subscription
	Add(Teardown)
}

type Operator[T, R any] func(Observable[T]) Observable[R]

// ==============================================

// ObserverFuncs is a partial observer; nil handlers are skipped, except a nil
// OnError which raises the error as unhandled.
type ObserverFuncs[T any] struct {
	OnNext     func(T)
	OnError    func(error)
	OnComplete func()
}

func (o ObserverFuncs[T]) Next(v T) {
	if o.OnNext != nil {
		o.OnNext(v)
	}
}

func (o ObserverFuncs[T]) Error(err error) {
	if o.OnError != nil {
		o.OnError(err)
		return
	}
	panic(rxflow.Unhandled(err))
}

func (o ObserverFuncs[T]) Complete() {
	if o.OnComplete != nil {
		o.OnComplete()
	}
}

// NextFunc observes values only.
type NextFunc[T any] func(T)

func (f NextFunc[T]) Next(v T) {
	f(v)
}

func (f NextFunc[T]) Error(err error) {
	panic(rxflow.Unhandled(err))
}

func (f NextFunc[T]) Complete() {}

// ==============================================

const (
	stateActive int32 = iota
	stateCompleted
	stateErrored
	stateUnsubscribed
)

// CompositeSubscription collects teardowns and runs them once, in the order
// they were added, on Unsubscribe. Teardowns added after that run immediately.
type CompositeSubscription struct {
	mu        sync.Mutex
	state     int32
	teardowns []Teardown
}

func NewSubscription() *CompositeSubscription {
	return &CompositeSubscription{}
}

func (s *CompositeSubscription) Add(td Teardown) {
	if td == nil {
		return
	}
	s.mu.Lock()
	if atomic.LoadInt32(&s.state) != stateActive {
		s.mu.Unlock()
		td()
		return
	}
	s.teardowns = append(s.teardowns, td)
	s.mu.Unlock()
}

func (s *CompositeSubscription) Closed() bool {
	return atomic.LoadInt32(&s.state) != stateActive
}

func (s *CompositeSubscription) Unsubscribe() {
	if s.terminate(stateUnsubscribed) {
		s.release()
	}
}

func (s *CompositeSubscription) terminate(state int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomic.CompareAndSwapInt32(&s.state, stateActive, state)
}

func (s *CompositeSubscription) release() {
	s.mu.Lock()
	tds := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()
	for _, td := range tds {
		td()
	}
}

type subscriber[T any] struct {
	*CompositeSubscription
	observer Observer[T]
}

func newSubscriber[T any](o Observer[T]) *subscriber[T] {
	return &subscriber[T]{
		CompositeSubscription: NewSubscription(),
		observer:              o,
	}
}

func (s *subscriber[T]) Next(v T) {
	if s.Closed() {
		return
	}
	deliver(func() { s.observer.Next(v) })
}

func (s *subscriber[T]) Error(err error) {
	if !s.terminate(stateErrored) {
		return
	}
	defer s.release()
	deliver(func() { s.observer.Error(err) })
}

func (s *subscriber[T]) Complete() {
	if !s.terminate(stateCompleted) {
		return
	}
	defer s.release()
	deliver(s.observer.Complete)
}

// deliver calls an observer callback and rethrows its panic as an
// ObserverCallbackError. Callback and unhandled errors raised further
// downstream pass through unchanged; a ProducerError panicked by the callback
// is wrapped like any other value.
func deliver(call func()) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*rxflow.Error); ok && e.Kind != rxflow.ProducerError {
				panic(e)
			}
			panic(rxflow.CallbackError(r))
		}
	}()
	call()
}

// guard runs an operator function and turns its panic into a ProducerError.
func guard(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*rxflow.Error); ok && e.Kind != rxflow.ProducerError {
				panic(e)
			}
			err = rxflow.RuntimeError(r)
		}
	}()
	f()
	return nil
}

// ==============================================

// FuncObservable is a cold observable; the producer runs once per subscription.
type FuncObservable[T any] func(Subscriber[T]) Teardown

func (f FuncObservable[T]) Subscribe(o Observer[T]) Subscription {
	s := newSubscriber(o)
	var td Teardown
	if err := guard(func() { td = f(s) }); err != nil {
		if s.Closed() {
			panic(err)
		}
		s.Error(err)
		return s
	}
	s.Add(td)
	return s
}

// Create builds a cold observable from a producer.
func Create[T any](producer func(Subscriber[T]) Teardown) Observable[T] {
	return FuncObservable[T](producer)
}

// ==============================================

func Pipe[T any](src Observable[T], ops ...Operator[T, T]) Observable[T] {
	for _, op := range ops {
		src = op(src)
	}
	return src
}

func Via[T, R any](src Observable[T], op Operator[T, R]) Observable[R] {
	return op(src)
}

func Via2[T, K, R any](src Observable[T], op1 Operator[T, K], op2 Operator[K, R]) Observable[R] {
	return op2(op1(src))
}

func Via3[T, K, L, R any](src Observable[T], op1 Operator[T, K], op2 Operator[K, L], op3 Operator[L, R]) Observable[R] {
	return op3(op2(op1(src)))
}
