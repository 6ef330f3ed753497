package events_test

import (
	"testing"

	"github.com/kpsoft/kp-planta/events"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := events.NewBus()

	var first, second []bool
	bus.Subscribe(func(ev events.ExtrasChanged) { first = append(first, ev.Active) })
	bus.Subscribe(func(ev events.ExtrasChanged) { second = append(second, ev.Active) })

	bus.Publish(events.ExtrasChanged{Active: true})
	bus.Publish(events.ExtrasChanged{Active: false})

	require.Equal(t, []bool{true, false}, first)
	require.Equal(t, []bool{true, false}, second)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus()

	var got int
	unsubscribe := bus.Subscribe(func(events.ExtrasChanged) { got++ })

	bus.Publish(events.ExtrasChanged{Active: true})
	unsubscribe()
	bus.Publish(events.ExtrasChanged{Active: false})

	require.Equal(t, 1, got)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	bus := events.NewBus()

	var unsubscribe func()
	var got int
	unsubscribe = bus.Subscribe(func(events.ExtrasChanged) {
		got++
		unsubscribe()
	})

	bus.Publish(events.ExtrasChanged{Active: true})
	bus.Publish(events.ExtrasChanged{Active: true})

	require.Equal(t, 1, got)
}
