package rx

import (
	"fmt"
	"strings"
	"sync"
)

// Strategy decides how the inner observables of a flat map share one outer
// subscription.
type Strategy int

const (
	// MergeStrategy subscribes every inner at once and interleaves their values.
	MergeStrategy Strategy = iota
	// ConcatStrategy subscribes one inner at a time, queueing the rest in
	// outer order.
	ConcatStrategy
	// SwitchStrategy keeps only the newest inner and unsubscribes the previous one.
	SwitchStrategy
	// ExhaustStrategy drops outer values while an inner is active.
	ExhaustStrategy
)

var strategyNames = map[Strategy]string{
	MergeStrategy:   "merge",
	ConcatStrategy:  "concat",
	SwitchStrategy:  "switch",
	ExhaustStrategy: "exhaust",
}

func (st Strategy) String() string {
	if name, ok := strategyNames[st]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(st))
}

// ParseStrategy accepts a strategy name with an optional "_map" suffix;
// "flat" is an alias for merge.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.TrimSuffix(strings.ToLower(name), "_map")
	if name == "flat" {
		return MergeStrategy, nil
	}
	for st, n := range strategyNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

type flattener[R any] interface {
	push(Observable[R])
	outerComplete()
	dispose()
}

func newFlattener[R any](st Strategy, down Subscriber[R]) flattener[R] {
	switch st {
	case ConcatStrategy:
		return &concatFlattener[R]{serial: serial[R]{down: down}}
	case SwitchStrategy:
		return &switchFlattener[R]{serial: serial[R]{down: down}}
	case ExhaustStrategy:
		return &exhaustFlattener[R]{serial: serial[R]{down: down}}
	default:
		return &mergeFlattener[R]{down: down, inners: make(map[uint64]Subscription)}
	}
}

// ===== merge =====

type mergeFlattener[R any] struct {
	mu        sync.Mutex
	down      Subscriber[R]
	seq       uint64
	inners    map[uint64]Subscription
	outerDone bool
}

func (f *mergeFlattener[R]) push(inner Observable[R]) {
	f.mu.Lock()
	f.seq++
	id := f.seq
	f.inners[id] = nil
	f.mu.Unlock()

	sub := inner.Subscribe(ObserverFuncs[R]{
		OnNext:     f.down.Next,
		OnError:    f.down.Error,
		OnComplete: func() { f.innerComplete(id) },
	})

	f.mu.Lock()
	if _, ok := f.inners[id]; ok {
		f.inners[id] = sub
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	sub.Unsubscribe()
}

func (f *mergeFlattener[R]) innerComplete(id uint64) {
	f.mu.Lock()
	delete(f.inners, id)
	finish := f.outerDone && len(f.inners) == 0
	f.mu.Unlock()
	if finish {
		f.down.Complete()
	}
}

func (f *mergeFlattener[R]) outerComplete() {
	f.mu.Lock()
	f.outerDone = true
	finish := len(f.inners) == 0
	f.mu.Unlock()
	if finish {
		f.down.Complete()
	}
}

func (f *mergeFlattener[R]) dispose() {
	f.mu.Lock()
	inners := f.inners
	f.inners = make(map[uint64]Subscription)
	f.mu.Unlock()
	for _, sub := range inners {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// ===== single active inner =====

// serial tracks at most one active inner. Every inner gets an id; events and
// completions of an inner that is no longer current are ignored.
type serial[R any] struct {
	mu        sync.Mutex
	down      Subscriber[R]
	seq       uint64
	currentID uint64
	current   Subscription
	active    bool
	outerDone bool
	disposed  bool
}

func (f *serial[R]) isCurrent(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active && f.currentID == id
}

// begin marks a new current inner; callers hold f.mu.
func (f *serial[R]) begin() uint64 {
	f.seq++
	f.currentID = f.seq
	f.current = nil
	f.active = true
	return f.currentID
}

// start subscribes inner as the current inner with the given id. onDone runs
// when that inner completes while still current.
func (f *serial[R]) start(id uint64, inner Observable[R], onDone func(uint64)) {
	sub := inner.Subscribe(ObserverFuncs[R]{
		OnNext: func(v R) {
			if f.isCurrent(id) {
				f.down.Next(v)
			}
		},
		OnError: func(err error) {
			if f.isCurrent(id) {
				f.down.Error(err)
			}
		},
		OnComplete: func() { onDone(id) },
	})

	f.mu.Lock()
	if f.active && f.currentID == id && !f.disposed {
		f.current = sub
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	sub.Unsubscribe()
}

// finish clears the current inner if it is id and reports whether the
// downstream should complete now.
func (f *serial[R]) finish(id uint64) (cleared bool, complete bool) {
	if !f.active || f.currentID != id {
		return false, false
	}
	f.active = false
	f.current = nil
	return true, f.outerDone
}

func (f *serial[R]) outerComplete() {
	f.mu.Lock()
	f.outerDone = true
	idle := !f.active
	f.mu.Unlock()
	if idle {
		f.down.Complete()
	}
}

func (f *serial[R]) dispose() {
	f.mu.Lock()
	f.disposed = true
	f.active = false
	sub := f.current
	f.current = nil
	f.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// ===== concat =====

type concatFlattener[R any] struct {
	serial[R]
	queue []Observable[R]
}

func (f *concatFlattener[R]) push(inner Observable[R]) {
	f.mu.Lock()
	if f.active || f.disposed {
		f.queue = append(f.queue, inner)
		f.mu.Unlock()
		return
	}
	id := f.begin()
	f.mu.Unlock()
	f.start(id, inner, f.innerComplete)
}

func (f *concatFlattener[R]) innerComplete(id uint64) {
	f.mu.Lock()
	cleared, complete := f.finish(id)
	if !cleared {
		f.mu.Unlock()
		return
	}
	if len(f.queue) > 0 && !f.disposed {
		next := f.queue[0]
		f.queue = f.queue[1:]
		nextID := f.begin()
		f.mu.Unlock()
		f.start(nextID, next, f.innerComplete)
		return
	}
	f.mu.Unlock()
	if complete {
		f.down.Complete()
	}
}

func (f *concatFlattener[R]) dispose() {
	f.mu.Lock()
	f.queue = nil
	f.mu.Unlock()
	f.serial.dispose()
}

// ===== switch =====

type switchFlattener[R any] struct {
	serial[R]
}

func (f *switchFlattener[R]) push(inner Observable[R]) {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	prev := f.current
	id := f.begin()
	f.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
	f.start(id, inner, f.innerComplete)
}

func (f *switchFlattener[R]) innerComplete(id uint64) {
	f.mu.Lock()
	_, complete := f.finish(id)
	f.mu.Unlock()
	if complete {
		f.down.Complete()
	}
}

// ===== exhaust =====

type exhaustFlattener[R any] struct {
	serial[R]
}

func (f *exhaustFlattener[R]) push(inner Observable[R]) {
	f.mu.Lock()
	if f.active || f.disposed {
		f.mu.Unlock()
		return
	}
	id := f.begin()
	f.mu.Unlock()
	f.start(id, inner, f.innerComplete)
}

func (f *exhaustFlattener[R]) innerComplete(id uint64) {
	f.mu.Lock()
	_, complete := f.finish(id)
	f.mu.Unlock()
	if complete {
		f.down.Complete()
	}
}

// ===== flat map =====

// FlatMap projects every outer value to an inner observable and flattens the
// inners with the given strategy. The result completes once the outer and
// every inner it still waits for have completed.
func FlatMap[T, R any](st Strategy, project func(T) Observable[R]) Operator[T, R] {
	return func(src Observable[T]) Observable[R] {
		return Create(func(s Subscriber[R]) Teardown {
			f := newFlattener(st, s)
			s.Add(f.dispose)
			up := src.Subscribe(ObserverFuncs[T]{
				OnNext: func(v T) {
					var inner Observable[R]
					if err := guard(func() { inner = project(v) }); err != nil {
						s.Error(err)
						return
					}
					f.push(inner)
				},
				OnError:    s.Error,
				OnComplete: f.outerComplete,
			})
			return up.Unsubscribe
		})
	}
}

func MergeMap[T, R any](project func(T) Observable[R]) Operator[T, R] {
	return FlatMap(MergeStrategy, project)
}

func ConcatMap[T, R any](project func(T) Observable[R]) Operator[T, R] {
	return FlatMap(ConcatStrategy, project)
}

func SwitchMap[T, R any](project func(T) Observable[R]) Operator[T, R] {
	return FlatMap(SwitchStrategy, project)
}

func ExhaustMap[T, R any](project func(T) Observable[R]) Operator[T, R] {
	return FlatMap(ExhaustStrategy, project)
}

func identity[T any](v T) T {
	return v
}

func MergeAll[T any]() Operator[Observable[T], T] {
	return FlatMap(MergeStrategy, identity[Observable[T]])
}

func ConcatAll[T any]() Operator[Observable[T], T] {
	return FlatMap(ConcatStrategy, identity[Observable[T]])
}

func SwitchAll[T any]() Operator[Observable[T], T] {
	return FlatMap(SwitchStrategy, identity[Observable[T]])
}

func ExhaustAll[T any]() Operator[Observable[T], T] {
	return FlatMap(ExhaustStrategy, identity[Observable[T]])
}

// ===== static fan-in =====

func Merge[T any](obs ...Observable[T]) Observable[T] {
	return MergeAll[T]()(From(obs))
}

func Concat[T any](obs ...Observable[T]) Observable[T] {
	return ConcatAll[T]()(From(obs))
}

// Zip2 pairs the n-th values of a and b. It completes once either side has
// completed and has no buffered value left.
func Zip2[A, B, R any](a Observable[A], b Observable[B], combine func(A, B) R) Observable[R] {
	return Create(func(s Subscriber[R]) Teardown {
		var m sync.Mutex
		var bufA []A
		var bufB []B
		var doneA, doneB bool

		// emit pops one pair if both sides have one; callers hold m.
		emit := func() (R, bool, bool) {
			var r R
			if len(bufA) > 0 && len(bufB) > 0 {
				va, vb := bufA[0], bufB[0]
				bufA, bufB = bufA[1:], bufB[1:]
				r = combine(va, vb)
				return r, true, false
			}
			finished := (doneA && len(bufA) == 0) || (doneB && len(bufB) == 0)
			return r, false, finished
		}

		drain := func() {
			for {
				m.Lock()
				var r R
				var ok, finished bool
				err := guard(func() { r, ok, finished = emit() })
				m.Unlock()
				switch {
				case err != nil:
					s.Error(err)
					return
				case ok:
					s.Next(r)
				case finished:
					s.Complete()
					return
				default:
					return
				}
			}
		}

		subA := a.Subscribe(ObserverFuncs[A]{
			OnNext: func(v A) {
				m.Lock()
				bufA = append(bufA, v)
				m.Unlock()
				drain()
			},
			OnError: s.Error,
			OnComplete: func() {
				m.Lock()
				doneA = true
				m.Unlock()
				drain()
			},
		})
		s.Add(subA.Unsubscribe)
		if s.Closed() {
			return nil
		}

		subB := b.Subscribe(ObserverFuncs[B]{
			OnNext: func(v B) {
				m.Lock()
				bufB = append(bufB, v)
				m.Unlock()
				drain()
			},
			OnError: s.Error,
			OnComplete: func() {
				m.Lock()
				doneB = true
				m.Unlock()
				drain()
			},
		})
		s.Add(subB.Unsubscribe)
		return nil
	})
}
