// Package scenario replays scripted clicks through the flattening strategies.
package scenario

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	delay "github.com/ipfs/go-ipfs-delay"

	"github.com/7vars/rxflow"
	"github.com/7vars/rxflow/rx"
)

const clickEvent = "click"

// Event is one value of the stream started for a click.
type Event struct {
	Click int
	Value int
	// At is the time since the scenario started when the value was produced.
	At time.Duration
}

func (e Event) String() string {
	return fmt.Sprintf("click %d: %d @ %s", e.Click, e.Value, e.At)
}

type Env struct {
	Settings
	Scheduler rx.Scheduler
	Logger    rxflow.Logger
}

// Scenario builds a finite event stream. Every subscription replays the
// scenario from the start.
type Scenario func(Env) rx.Observable[Event]

var (
	scenarioMu sync.RWMutex
	scenarios  = make(map[string]Scenario)
)

func Register(name string, sc Scenario) {
	scenarioMu.Lock()
	defer scenarioMu.Unlock()
	if sc == nil {
		panic("scenario: " + name + " is nil")
	}
	if _, exists := scenarios[name]; exists {
		panic("scenario: " + name + " is already registered")
	}
	scenarios[name] = sc
}

func Lookup(name string) (Scenario, bool) {
	scenarioMu.RLock()
	defer scenarioMu.RUnlock()
	sc, ok := scenarios[name]
	return sc, ok
}

func Names() []string {
	scenarioMu.RLock()
	defer scenarioMu.RUnlock()
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("clicks", Clicks)
	Register("times", Times)
}

// replay emits each click index on target at its offset and completes after
// the last one.
func replay(env Env, target *rxflow.EventEmitter[int]) rx.Observable[int] {
	idx := make([]int, len(env.Clicks))
	for i := range idx {
		idx[i] = i
	}
	return rx.Via(rx.From(idx), rx.MergeMap(func(i int) rx.Observable[int] {
		return rx.Pipe(rx.Of(i),
			rx.Delay[int](env.Scheduler, env.Clicks[i]),
			rx.Tap(rx.ObserverFuncs[int]{
				OnNext: func(i int) { target.Emit(clickEvent, i) },
			}),
		)
	}))
}

// Clicks starts Interval(period).Take(take) for every click and flattens the
// inner streams with the configured strategy. It completes once the last
// click was replayed and the strategy drained its inners.
func Clicks(env Env) rx.Observable[Event] {
	return rx.Create(func(s rx.Subscriber[Event]) rx.Teardown {
		document := rxflow.NewEventEmitter[int]()
		start := env.Scheduler.Now()

		clicks := rx.Pipe(rx.FromEvent[int](document, clickEvent),
			rx.TakeUntil[int](rx.Via(replay(env, document), rx.Reduce(0, func(n, _ int) int { return n + 1 }))),
		)

		events := rx.Via(clicks, rx.FlatMap(env.Strategy, func(click int) rx.Observable[Event] {
			return rx.Via2(rx.Interval(env.Scheduler, env.Period), rx.Take[int](env.Take), rx.Map(func(v int) Event {
				return Event{Click: click, Value: v, At: env.Scheduler.Now().Sub(start)}
			}))
		}))

		return instrument(env, events, env.Strategy.String()).Subscribe(s).Unsubscribe
	})
}

// Times emits the index of every click at its offset.
func Times(env Env) rx.Observable[Event] {
	return rx.Create(func(s rx.Subscriber[Event]) rx.Teardown {
		start := env.Scheduler.Now()
		events := rx.Via(rx.From(env.Clicks), rx.MergeMap(func(offset time.Duration) rx.Observable[Event] {
			return rx.Via(rx.Pipe(rx.Of(offset), rx.Delay[time.Duration](env.Scheduler, offset)), rx.Map(func(time.Duration) Event {
				return Event{At: env.Scheduler.Now().Sub(start)}
			}))
		}))
		numbered := rx.Via(events, rx.Scan(Event{Click: -1}, func(prev, e Event) Event {
			e.Click = prev.Click + 1
			e.Value = e.Click
			return e
		}))
		return instrument(env, numbered, "times").Subscribe(s).Unsubscribe
	})
}

// instrument adds the configured network latency and logs the stream.
func instrument(env Env, events rx.Observable[Event], name string) rx.Observable[Event] {
	if env.Latency > 0 || env.Jitter > 0 {
		rng := rand.New(rand.NewSource(env.Seed))
		events = rx.Pipe(events, rx.DelayWith[Event](env.Scheduler, delay.VariableUniform(env.Latency, env.Jitter, rng)))
	}
	if env.Logger == nil {
		return events
	}
	return rx.Pipe(events, rx.Instrument[Event](env.Logger, name))
}

// Simulate runs the named scenario on a virtual clock and returns every event
// together with the virtual time it was delivered at.
func Simulate(settings Settings, logger rxflow.Logger) ([]Delivery, error) {
	sc, ok := Lookup(settings.Scenario)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", settings.Scenario)
	}

	vs := rx.NewVirtualScheduler()
	env := Env{Settings: settings, Scheduler: vs, Logger: logger}

	var deliveries []Delivery
	var runErr error
	completed := false
	sub := sc(env).Subscribe(rx.ObserverFuncs[Event]{
		OnNext: func(e Event) {
			deliveries = append(deliveries, Delivery{Event: e, Delivered: vs.Elapsed()})
		},
		OnError:    func(err error) { runErr = err },
		OnComplete: func() { completed = true },
	})
	defer sub.Unsubscribe()

	vs.Flush()
	if runErr != nil {
		return deliveries, runErr
	}
	if !completed {
		return deliveries, fmt.Errorf("scenario %q did not complete", settings.Scenario)
	}
	return deliveries, nil
}

type Delivery struct {
	Event
	Delivered time.Duration
}
