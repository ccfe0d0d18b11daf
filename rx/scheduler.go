package rx

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/7vars/rxflow"
)

type Timer interface {
	// Stop cancels the task. It reports false if the task already ran or was
	// stopped before.
	Stop() bool
}

// Scheduler is the host timer facility.
type Scheduler interface {
	Now() time.Time
	Schedule(time.Duration, func()) Timer
}

type ClockOption func(*ClockScheduler)

func WithLogger(logger rxflow.Logger) ClockOption {
	return func(cs *ClockScheduler) {
		cs.logger = logger
	}
}

// WithErrorHandler replaces logging as the report for panics raised by tasks.
func WithErrorHandler(f func(error)) ClockOption {
	return func(cs *ClockScheduler) {
		cs.onError = f
	}
}

func WithQueueSize(size int) ClockOption {
	return func(cs *ClockScheduler) {
		cs.queueSize = size
	}
}

// ClockScheduler runs every task on a single loop goroutine, one at a time,
// in the order the clock fires them.
type ClockScheduler struct {
	clock     clockwork.Clock
	logger    rxflow.Logger
	onError   func(error)
	queueSize int

	tasks     chan func()
	close     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClockScheduler(clock clockwork.Clock, opts ...ClockOption) *ClockScheduler {
	cs := &ClockScheduler{
		clock:     clock,
		queueSize: 100,
		close:     make(chan struct{}),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cs)
	}
	if cs.logger == nil {
		cs.logger = rxflow.NewLogger()
	}
	cs.tasks = make(chan func(), cs.queueSize)

	go cs.run()

	return cs
}

func (cs *ClockScheduler) run() {
	defer close(cs.closed)
	for {
		select {
		case task := <-cs.tasks:
			cs.execute(task)
		case <-cs.close:
			return
		}
	}
}

func (cs *ClockScheduler) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(*rxflow.Error)
			if !ok {
				err = rxflow.RuntimeError(r)
			}
			if cs.onError != nil {
				cs.onError(err)
				return
			}
			cs.logger.WithField("kind", err.Kind.String()).Errorf("scheduled task failed: %s", err.Message)
		}
	}()
	task()
}

// Post queues task on the loop. Tasks posted after Close are dropped.
func (cs *ClockScheduler) Post(task func()) {
	select {
	case <-cs.close:
		return
	default:
	}
	select {
	case cs.tasks <- task:
	case <-cs.close:
	}
}

func (cs *ClockScheduler) Now() time.Time {
	return cs.clock.Now()
}

func (cs *ClockScheduler) Schedule(d time.Duration, task func()) Timer {
	t := &clockTimer{}
	timer := cs.clock.AfterFunc(d, func() {
		cs.Post(func() {
			if atomic.CompareAndSwapInt32(&t.state, timerPending, timerDone) {
				task()
			}
		})
	})
	t.mu.Lock()
	t.timer = timer
	t.mu.Unlock()
	return t
}

// Close stops the loop and waits for the running task to finish.
// Must not be called from a scheduled task.
func (cs *ClockScheduler) Close() {
	cs.closeOnce.Do(func() {
		close(cs.close)
	})
	<-cs.closed
}

func (cs *ClockScheduler) Done() <-chan struct{} {
	return cs.closed
}

const (
	timerPending int32 = iota
	timerDone
	timerStopped
)

type clockTimer struct {
	mu    sync.Mutex
	state int32
	timer clockwork.Timer
}

func (t *clockTimer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&t.state, timerPending, timerStopped) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// SubscribeOn subscribes to src from a task on sched, so that the
// subscription side effects run where the scheduler runs its tasks.
func SubscribeOn[T any](sched Scheduler) Operator[T, T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(s Subscriber[T]) Teardown {
			var m sync.Mutex
			var up Subscription
			timer := sched.Schedule(0, func() {
				sub := src.Subscribe(s)
				m.Lock()
				up = sub
				m.Unlock()
				if s.Closed() {
					sub.Unsubscribe()
				}
			})
			return func() {
				timer.Stop()
				m.Lock()
				defer m.Unlock()
				if up != nil {
					up.Unsubscribe()
				}
			}
		})
	}
}
