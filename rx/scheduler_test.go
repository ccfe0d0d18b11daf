package rx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7vars/rxflow"
)

type taskLog struct {
	mu    sync.Mutex
	names []string
}

func (l *taskLog) add(name string) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.names = append(l.names, name)
	}
}

func (l *taskLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func TestClockSchedulerRunsDueTasks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cs := NewClockScheduler(clock)
	defer cs.Close()

	log := &taskLog{}
	cs.Schedule(2*time.Second, log.add("second"))
	cs.Schedule(time.Second, log.add("first"))

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"first"}, log.get())
	}, time.Second, time.Millisecond)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"first", "second"}, log.get())
	}, time.Second, time.Millisecond)
}

func TestClockSchedulerStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cs := NewClockScheduler(clock)
	defer cs.Close()

	log := &taskLog{}
	timer := cs.Schedule(time.Second, log.add("stopped"))
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clock.Advance(2 * time.Second)
	marker := make(chan struct{})
	cs.Post(func() { close(marker) })
	<-marker

	assert.Empty(t, log.get())
}

func TestClockSchedulerReportsTaskPanics(t *testing.T) {
	errs := make(chan error, 1)
	cs := NewClockScheduler(clockwork.NewFakeClock(), WithErrorHandler(func(err error) {
		errs <- err
	}))
	defer cs.Close()

	cs.Post(func() { panic("tick failed") })

	select {
	case err := <-errs:
		assert.True(t, rxflow.IsKind(err, rxflow.ProducerError))
		assert.Contains(t, err.Error(), "tick failed")
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}

	// the loop survives a failed task
	done := make(chan struct{})
	cs.Post(func() { close(done) })
	<-done
}

func TestClockSchedulerClose(t *testing.T) {
	cs := NewClockScheduler(clockwork.NewFakeClock(), WithQueueSize(1))
	cs.Close()
	cs.Close()

	select {
	case <-cs.Done():
	default:
		t.Fatal("loop still running")
	}
	assert.NotPanics(t, func() {
		cs.Post(func() {})
		cs.Post(func() {})
	})
}

func TestClockSchedulerWithRealClock(t *testing.T) {
	cs := NewClockScheduler(clockwork.NewRealClock())
	defer cs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := Collect(ctx, Via(Interval(cs, 10*time.Millisecond), Take[int](3)))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, result)
}

func TestVirtualSchedulerOrdersByDueTimeThenSequence(t *testing.T) {
	vs := NewVirtualScheduler()
	log := &taskLog{}

	vs.Schedule(2*ms, log.add("c"))
	vs.Schedule(1*ms, log.add("a"))
	vs.Schedule(2*ms, log.add("d"))
	vs.Schedule(1*ms, log.add("b"))
	vs.Schedule(-time.Second, log.add("now"))

	vs.Advance(0)
	assert.Equal(t, []string{"now"}, log.get())

	vs.Flush()
	assert.Equal(t, []string{"now", "a", "b", "c", "d"}, log.get())
	assert.Equal(t, 2*ms, vs.Elapsed())
}

func TestVirtualSchedulerStop(t *testing.T) {
	vs := NewVirtualScheduler()
	log := &taskLog{}

	vs.Schedule(1*ms, log.add("a"))
	stopped := vs.Schedule(2*ms, log.add("b"))
	vs.Schedule(3*ms, log.add("c"))

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Equal(t, 2, vs.Pending())

	vs.Flush()
	assert.Equal(t, []string{"a", "c"}, log.get())
}

func TestVirtualSchedulerRunsNestedTasks(t *testing.T) {
	vs := NewVirtualScheduler()
	log := &taskLog{}

	vs.Schedule(1*ms, func() {
		log.add("outer")()
		vs.Schedule(1*ms, log.add("inner"))
	})

	vs.Advance(5 * ms)
	assert.Equal(t, []string{"outer", "inner"}, log.get())
	assert.Equal(t, 5*ms, vs.Elapsed())
}

func TestFirstAndLast(t *testing.T) {
	ctx := context.Background()

	first, err := First(ctx, Of(5, 6, 7))
	require.NoError(t, err)
	assert.Equal(t, 5, first)

	last, err := Last(ctx, Of(5, 6, 7))
	require.NoError(t, err)
	assert.Equal(t, 7, last)

	_, err = First(ctx, Empty[int]())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Last(ctx, Empty[int]())
	assert.ErrorIs(t, err, ErrEmpty)

	boom := errors.New("boom")
	_, err = First(ctx, Throw[int](boom))
	assert.Equal(t, boom, err)
}

func TestSinksRespectContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	teardowns := 0
	src := Create(func(s Subscriber[int]) Teardown {
		s.Next(1)
		return func() { teardowns++ }
	})

	values, err := Collect(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, values)
	assert.Equal(t, 1, teardowns)

	_, err = First(ctx, Never[int]())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectReturnsUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	values, err := Collect(context.Background(), Concat(Of(1, 2), Throw[int](boom)))
	assert.Equal(t, boom, err)
	assert.Equal(t, []int{1, 2}, values)
}

func TestSubscribeOnDefersSubscription(t *testing.T) {
	vs := NewVirtualScheduler()
	runs := 0
	src := Create(func(s Subscriber[int]) Teardown {
		runs++
		s.Next(runs)
		return nil
	})

	r, _ := record(Pipe(src, SubscribeOn[int](vs)))
	assert.Equal(t, 0, runs)
	vs.Advance(0)
	assert.Equal(t, 1, runs)
	assert.Equal(t, []int{1}, r.values)

	_, sub := record(Pipe(src, SubscribeOn[int](vs)))
	sub.Unsubscribe()
	vs.Flush()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, vs.Pending())
}
