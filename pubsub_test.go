package rxflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventEmitterNotifiesInRegistrationOrder(t *testing.T) {
	em := NewEventEmitter[int]()
	var calls []string

	em.AddEventListener("click", func(v int) { calls = append(calls, "a") })
	em.AddEventListener("click", func(v int) { calls = append(calls, "b") })
	em.AddEventListener("scroll", func(v int) { calls = append(calls, "scroll") })

	em.Emit("click", 1)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 2, em.ListenerCount("click"))
}

func TestEventEmitterRemove(t *testing.T) {
	em := NewEventEmitter[string]()
	var got []string

	remove := em.AddEventListener("click", func(v string) { got = append(got, v) })
	em.Emit("click", "first")
	remove()
	remove()
	em.Emit("click", "second")

	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 0, em.ListenerCount("click"))
}

func TestEventEmitterListenerAddedDuringEmit(t *testing.T) {
	em := NewEventEmitter[int]()
	var late []int

	em.AddEventListener("click", func(v int) {
		if v == 1 {
			em.AddEventListener("click", func(v int) { late = append(late, v) })
		}
	})

	em.Emit("click", 1)
	em.Emit("click", 2)
	assert.Equal(t, []int{2}, late)
}
