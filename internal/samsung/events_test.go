package samsung

import (
	"testing"

	"samsung-ac-bridge/internal/protocol"
)

func TestEventBusTypedHandlers(t *testing.T) {
	bus := NewEventBus(newTestLogger())

	var updates []Update
	var found []Discovery
	offUpdate := bus.OnUpdate(func(u Update) { updates = append(updates, u) })
	bus.OnDiscovery(func(d Discovery) { found = append(found, d) })

	bus.Emit(Event{Type: EventEntityUpdate, Data: Update{Device: "20.00.00", Key: "power", Value: Bool(true)}})
	bus.Emit(Event{Type: EventEntityUpdate, Data: "not an update"})
	bus.Emit(Event{Type: EventDeviceDiscovered, Data: Discovery{Address: "10.00.00", Kind: protocol.KindOutdoor}})
	bus.Emit(Event{Type: EventCommandQueued, Data: protocol.Command{Address: "20.00.00"}})

	if len(updates) != 1 || updates[0].Key != "power" {
		t.Errorf("updates = %+v", updates)
	}
	if len(found) != 1 || found[0].Kind != protocol.KindOutdoor {
		t.Errorf("discoveries = %+v", found)
	}

	offUpdate()
	bus.Emit(Event{Type: EventEntityUpdate, Data: Update{Device: "20.00.00", Key: "mode"}})
	if len(updates) != 1 {
		t.Errorf("handler still called after unsubscribe: %+v", updates)
	}
}

func TestEventBusOnAll(t *testing.T) {
	bus := NewEventBus(newTestLogger())
	seen := map[string]int{}
	off := bus.OnAll(func(e Event) { seen[e.Type]++ })

	bus.Emit(Event{Type: EventEntityUpdate})
	bus.Emit(Event{Type: EventCommandQueued})
	off()
	bus.Emit(Event{Type: EventCommandQueued})

	if seen[EventEntityUpdate] != 1 || seen[EventCommandQueued] != 1 {
		t.Errorf("seen = %v", seen)
	}
}

func TestNilEventBusEmit(t *testing.T) {
	var bus *EventBus
	bus.Emit(Event{Type: EventEntityUpdate})
}
