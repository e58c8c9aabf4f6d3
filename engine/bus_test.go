package engine_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/siteops/sheetsync/engine"
)

func TestBus_BroadcastReachesAllSubscribers(t *testing.T) {
	bus := engine.NewBus(zerolog.Nop())

	var got sync.Map
	for _, id := range []string{"a", "b", "c"} {
		id := id
		bus.Register(id, "user@example.com", false, engine.SenderFunc(func(event string, payload any) error {
			got.Store(id, event)
			return nil
		}))
	}

	bus.Broadcast(engine.EventDataUpdated, engine.UpdatePayload{Message: "x"})

	for _, id := range []string{"a", "b", "c"} {
		v, ok := got.Load(id)
		assert.True(t, ok, "subscriber %s missed the broadcast", id)
		assert.Equal(t, engine.EventDataUpdated, v)
	}
}

func TestBus_OneFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	// GIVEN: A dead connection among healthy ones
	// WHEN: Broadcasting
	// THEN: Healthy subscribers still receive, and no error escapes

	bus := engine.NewBus(zerolog.Nop())

	var delivered atomic.Int32
	bus.Register("dead", "", false, engine.SenderFunc(func(string, any) error {
		return errors.New("connection reset")
	}))
	bus.Register("live-1", "", false, engine.SenderFunc(func(string, any) error {
		delivered.Add(1)
		return nil
	}))
	bus.Register("live-2", "", false, engine.SenderFunc(func(string, any) error {
		delivered.Add(1)
		return nil
	}))

	bus.Broadcast(engine.EventDataUpdated, nil)
	assert.Equal(t, int32(2), delivered.Load())
}

func TestBus_UnregisterStopsDelivery(t *testing.T) {
	bus := engine.NewBus(zerolog.Nop())

	var delivered atomic.Int32
	bus.Register("s", "", false, engine.SenderFunc(func(string, any) error {
		delivered.Add(1)
		return nil
	}))

	bus.Broadcast(engine.EventDataUpdated, nil)
	bus.Unregister("s")
	bus.Broadcast(engine.EventDataUpdated, nil)

	assert.Equal(t, int32(1), delivered.Load())
	assert.Equal(t, 0, bus.Count())
}

func TestBus_RegisterDuringBroadcastIsSafe(t *testing.T) {
	// Registration concurrent with an in-flight broadcast must not race.
	// Whether the new subscriber catches that broadcast is unspecified;
	// it must receive all subsequent ones.

	bus := engine.NewBus(zerolog.Nop())
	bus.Register("existing", "", false, engine.SenderFunc(func(string, any) error { return nil }))

	var late atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Broadcast(engine.EventDataUpdated, nil)
		}
	}()
	bus.Register("late", "", false, engine.SenderFunc(func(string, any) error {
		late.Add(1)
		return nil
	}))
	<-done

	bus.Broadcast(engine.EventDataUpdated, nil)
	assert.GreaterOrEqual(t, late.Load(), int32(1))
}
