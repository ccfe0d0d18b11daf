package rx

import (
	"container/heap"
	"sync"
	"time"
)

// VirtualScheduler keeps its own clock and runs due tasks synchronously on
// the goroutine advancing it. Tasks due at the same instant run in the order
// they were scheduled.
type VirtualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue virtualQueue
}

func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{
		now: time.Unix(0, 0).UTC(),
	}
}

func (vs *VirtualScheduler) Now() time.Time {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.now
}

// Elapsed is the virtual time passed since the scheduler was created.
func (vs *VirtualScheduler) Elapsed() time.Duration {
	return vs.Now().Sub(time.Unix(0, 0).UTC())
}

func (vs *VirtualScheduler) Schedule(d time.Duration, task func()) Timer {
	if d < 0 {
		d = 0
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.seq++
	t := &virtualTask{
		owner: vs,
		due:   vs.now.Add(d),
		seq:   vs.seq,
		task:  task,
	}
	heap.Push(&vs.queue, t)
	return t
}

func (vs *VirtualScheduler) Advance(d time.Duration) {
	vs.AdvanceTo(vs.Now().Add(d))
}

// AdvanceTo runs every task due up to and including t, including tasks
// scheduled by those tasks, then sets the clock to t.
func (vs *VirtualScheduler) AdvanceTo(t time.Time) {
	for {
		vs.mu.Lock()
		if len(vs.queue) == 0 || vs.queue[0].due.After(t) {
			if t.After(vs.now) {
				vs.now = t
			}
			vs.mu.Unlock()
			return
		}
		next := heap.Pop(&vs.queue).(*virtualTask)
		if next.due.After(vs.now) {
			vs.now = next.due
		}
		vs.mu.Unlock()
		next.task()
	}
}

// Flush runs tasks until none is left. Periodic sources never drain, so
// Flush on an unbounded interval does not return.
func (vs *VirtualScheduler) Flush() {
	for {
		vs.mu.Lock()
		if len(vs.queue) == 0 {
			vs.mu.Unlock()
			return
		}
		due := vs.queue[0].due
		vs.mu.Unlock()
		vs.AdvanceTo(due)
	}
}

func (vs *VirtualScheduler) Pending() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.queue)
}

type virtualTask struct {
	owner *VirtualScheduler
	due   time.Time
	seq   uint64
	task  func()
	index int
}

func (t *virtualTask) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.owner.queue, t.index)
	return true
}

type virtualQueue []*virtualTask

func (q virtualQueue) Len() int { return len(q) }

func (q virtualQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q virtualQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *virtualQueue) Push(x interface{}) {
	t := x.(*virtualTask)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *virtualQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
