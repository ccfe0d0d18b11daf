package rx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// waits hands out a fixed sequence of wait times.
type waits struct {
	seq []time.Duration
	i   int
}

func (w *waits) Set(d time.Duration) time.Duration {
	prev := w.Get()
	w.seq = []time.Duration{d}
	w.i = 0
	return prev
}

func (w *waits) Wait() {
	time.Sleep(w.NextWaitTime())
}

func (w *waits) NextWaitTime() time.Duration {
	d := w.Get()
	w.i++
	return d
}

func (w *waits) Get() time.Duration {
	if len(w.seq) == 0 {
		return 0
	}
	if w.i >= len(w.seq) {
		return w.seq[len(w.seq)-1]
	}
	return w.seq[w.i]
}

func TestDelayShiftsValues(t *testing.T) {
	vs := NewVirtualScheduler()

	r := stamp(vs, Pipe(Of(1, 2), Delay[int](vs, 10*ms)))
	assert.Empty(t, r.values)
	assert.False(t, r.completed)

	vs.Advance(9 * ms)
	assert.Empty(t, r.values)

	vs.Advance(1 * ms)
	assert.Equal(t, []stamped{{10 * ms, 1}, {10 * ms, 2}}, r.values)
	assert.True(t, r.completed)
}

func TestDelayWithVariableWaits(t *testing.T) {
	vs := NewVirtualScheduler()
	d := &waits{seq: []time.Duration{30 * ms, 10 * ms, 20 * ms}}

	r := stamp(vs, Pipe(Of(1, 2, 3), DelayWith[int](vs, d)))
	vs.Flush()

	assert.Equal(t, []stamped{{10 * ms, 2}, {20 * ms, 3}, {30 * ms, 1}}, r.values)
	assert.True(t, r.completed)
}

func TestDelayCompletesImmediatelyWhenIdle(t *testing.T) {
	vs := NewVirtualScheduler()
	r := stamp(vs, Pipe(Empty[int](), Delay[int](vs, 10*ms)))
	assert.True(t, r.completed)
	assert.Equal(t, 0, vs.Pending())
}

func TestDelayForwardsErrorsAtOnce(t *testing.T) {
	vs := NewVirtualScheduler()
	boom := errors.New("boom")

	r := stamp(vs, Pipe(Concat(Of(1), Throw[int](boom)), Delay[int](vs, 10*ms)))
	assert.Equal(t, boom, r.err)
	assert.Equal(t, 0, vs.Pending())

	vs.Flush()
	assert.Empty(t, r.values)
}

func TestDelayUnsubscribeCancelsTimers(t *testing.T) {
	vs := NewVirtualScheduler()
	var seen []int

	sub := Pipe(Of(1, 2, 3), Delay[int](vs, 10*ms)).Subscribe(NextFunc[int](func(v int) {
		seen = append(seen, v)
	}))
	assert.Equal(t, 3, vs.Pending())

	sub.Unsubscribe()
	assert.Equal(t, 0, vs.Pending())

	vs.Advance(time.Second)
	assert.Empty(t, seen)
}

func TestIntervalWithTake(t *testing.T) {
	vs := NewVirtualScheduler()

	r := stamp(vs, Via(Interval(vs, time.Second), Take[int](3)))
	vs.Advance(10 * time.Second)

	assert.Equal(t, []stamped{{time.Second, 0}, {2 * time.Second, 1}, {3 * time.Second, 2}}, r.values)
	assert.True(t, r.completed)
	assert.Equal(t, 0, vs.Pending())
}

func TestIntervalUnsubscribe(t *testing.T) {
	vs := NewVirtualScheduler()
	var seen []int

	sub := Interval(vs, time.Second).Subscribe(NextFunc[int](func(v int) {
		seen = append(seen, v)
	}))
	vs.Advance(2500 * ms)
	sub.Unsubscribe()
	vs.Advance(10 * time.Second)

	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, 0, vs.Pending())
}

// hookScheduler runs onSchedule once, right after the next task is scheduled.
type hookScheduler struct {
	*VirtualScheduler
	onSchedule func()
}

func (hs *hookScheduler) Schedule(d time.Duration, task func()) Timer {
	timer := hs.VirtualScheduler.Schedule(d, task)
	if f := hs.onSchedule; f != nil {
		hs.onSchedule = nil
		f()
	}
	return timer
}

func TestIntervalUnsubscribeWhileRescheduling(t *testing.T) {
	hs := &hookScheduler{VirtualScheduler: NewVirtualScheduler()}
	var seen []int

	sub := Interval(hs, time.Second).Subscribe(NextFunc[int](func(v int) {
		seen = append(seen, v)
	}))
	hs.onSchedule = sub.Unsubscribe

	hs.Advance(time.Second)
	assert.Equal(t, []int{0}, seen)
	assert.Equal(t, 0, hs.Pending())

	hs.Advance(5 * time.Second)
	assert.Equal(t, []int{0}, seen)
}

func TestAfter(t *testing.T) {
	vs := NewVirtualScheduler()

	r := stamp(vs, After(vs, 5*ms))
	vs.Flush()
	assert.Equal(t, []stamped{{5 * ms, 0}}, r.values)
	assert.True(t, r.completed)

	sub := After(vs, 5*ms).Subscribe(NextFunc[int](func(int) {
		t.Fatal("stopped timer fired")
	}))
	sub.Unsubscribe()
	vs.Flush()
}
