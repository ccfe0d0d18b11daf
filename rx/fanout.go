package rx

import (
	"sync"

	"github.com/google/uuid"
)

// Subject is hot: subscribing joins the broadcast, it never starts production.
type Subject[T any] interface {
	Observable[T]
	Observer[T]
	// Observed reports the number of registered observers.
	Observed() int
}

type subject[T any] struct {
	mu        sync.RWMutex
	order     []uuid.UUID
	observers map[uuid.UUID]*subscriber[T]
	state     int32
	err       error
}

func NewSubject[T any]() Subject[T] {
	return &subject[T]{
		observers: make(map[uuid.UUID]*subscriber[T]),
	}
}

// Subscribe registers o. After a terminal event o receives that event at once.
func (sub *subject[T]) Subscribe(o Observer[T]) Subscription {
	s := newSubscriber(o)

	sub.mu.Lock()
	switch sub.state {
	case stateErrored:
		err := sub.err
		sub.mu.Unlock()
		s.Error(err)
		return s
	case stateCompleted:
		sub.mu.Unlock()
		s.Complete()
		return s
	}
	id := uuid.New()
	sub.order = append(sub.order, id)
	sub.observers[id] = s
	sub.mu.Unlock()

	s.Add(func() {
		sub.remove(id)
	})
	return s
}

func (sub *subject[T]) remove(id uuid.UUID) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if _, ok := sub.observers[id]; !ok {
		return
	}
	delete(sub.observers, id)
	for i, oid := range sub.order {
		if oid == id {
			sub.order = append(sub.order[:i:i], sub.order[i+1:]...)
			break
		}
	}
}

// snapshot returns the observers registered right now in subscription order.
func (sub *subject[T]) snapshot() []*subscriber[T] {
	result := make([]*subscriber[T], 0, len(sub.order))
	for _, id := range sub.order {
		result = append(result, sub.observers[id])
	}
	return result
}

func (sub *subject[T]) Next(v T) {
	sub.mu.RLock()
	if sub.state != stateActive {
		sub.mu.RUnlock()
		return
	}
	targets := sub.snapshot()
	sub.mu.RUnlock()

	broadcast(targets, func(target *subscriber[T]) { target.Next(v) })
}

// broadcast calls f for every target even if one of them panics. The first
// panic is raised again after the last target.
func broadcast[T any](targets []*subscriber[T], f func(*subscriber[T])) {
	var failure interface{}
	for _, target := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil && failure == nil {
					failure = r
				}
			}()
			f(target)
		}()
	}
	if failure != nil {
		panic(failure)
	}
}

func (sub *subject[T]) terminate(state int32, err error) []*subscriber[T] {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.state != stateActive {
		return nil
	}
	sub.state = state
	sub.err = err
	targets := sub.snapshot()
	sub.order = nil
	sub.observers = make(map[uuid.UUID]*subscriber[T])
	return targets
}

func (sub *subject[T]) Error(err error) {
	broadcast(sub.terminate(stateErrored, err), func(target *subscriber[T]) { target.Error(err) })
}

func (sub *subject[T]) Complete() {
	broadcast(sub.terminate(stateCompleted, nil), func(target *subscriber[T]) { target.Complete() })
}

func (sub *subject[T]) Observed() int {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	return len(sub.observers)
}

// ===== multicast =====

// Connectable shares one upstream execution through a subject. Subscribing
// only joins the subject; Connect starts the upstream.
type Connectable[T any] interface {
	Observable[T]
	// Connect subscribes the source to the subject unless a connection is
	// already live, in which case that connection is returned.
	Connect() Subscription
}

type connectable[T any] struct {
	mu      sync.Mutex
	source  Observable[T]
	factory func() Subject[T]
	subject Subject[T]
	conn    *CompositeSubscription
}

// Multicast shares source through subject for every connection.
func Multicast[T any](source Observable[T], subject Subject[T]) Connectable[T] {
	return &connectable[T]{
		source:  source,
		factory: func() Subject[T] { return subject },
	}
}

// MulticastWith asks factory for a fresh subject whenever the previous one
// has terminated, so a completed source can be connected again.
func MulticastWith[T any](source Observable[T], factory func() Subject[T]) Connectable[T] {
	return &connectable[T]{
		source:  source,
		factory: factory,
	}
}

func (c *connectable[T]) currentSubject() Subject[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subject == nil {
		c.subject = c.factory()
	}
	return c.subject
}

func (c *connectable[T]) Subscribe(o Observer[T]) Subscription {
	return c.currentSubject().Subscribe(o)
}

func (c *connectable[T]) Connect() Subscription {
	c.mu.Lock()
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn
	}
	if c.subject == nil {
		c.subject = c.factory()
	}
	subject := c.subject
	conn := NewSubscription()
	c.conn = conn
	c.mu.Unlock()

	conn.Add(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn == conn {
			c.conn = nil
		}
	})

	// a terminated subject is replaced on the next subscribe or connect
	reset := func() {
		c.mu.Lock()
		if c.subject == subject {
			c.subject = nil
		}
		c.mu.Unlock()
		conn.Unsubscribe()
	}

	up := c.source.Subscribe(ObserverFuncs[T]{
		OnNext: subject.Next,
		OnError: func(err error) {
			defer reset()
			subject.Error(err)
		},
		OnComplete: func() {
			defer reset()
			subject.Complete()
		},
	})
	conn.Add(up.Unsubscribe)
	return conn
}

type refCount[T any] struct {
	mu     sync.Mutex
	source Connectable[T]
	count  int
	conn   Subscription
}

// RefCount connects source when the first subscriber arrives and drops the
// connection when the last one leaves.
func RefCount[T any](source Connectable[T]) Observable[T] {
	rc := &refCount[T]{source: source}
	return Create(rc.subscribe)
}

func (rc *refCount[T]) subscribe(s Subscriber[T]) Teardown {
	rc.mu.Lock()
	rc.count++
	first := rc.count == 1
	rc.mu.Unlock()

	inner := rc.source.Subscribe(s)

	if first {
		conn := rc.source.Connect()
		rc.mu.Lock()
		if rc.count == 0 {
			rc.mu.Unlock()
			conn.Unsubscribe()
		} else {
			rc.conn = conn
			rc.mu.Unlock()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			inner.Unsubscribe()
			rc.mu.Lock()
			rc.count--
			var conn Subscription
			if rc.count == 0 {
				conn = rc.conn
				rc.conn = nil
			}
			rc.mu.Unlock()
			if conn != nil {
				conn.Unsubscribe()
			}
		})
	}
}

// Share is RefCount over a fresh subject per connection.
func Share[T any](source Observable[T]) Observable[T] {
	return RefCount(MulticastWith(source, NewSubject[T]))
}
