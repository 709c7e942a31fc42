package engine

import "testing"

func TestEventBus_SubscribeTypesFilters(t *testing.T) {
	eb := NewEventBus()
	var all, scans int
	eb.Subscribe(func(Event) { all++ })
	eb.SubscribeTypes(func(Event) { scans++ }, EventScanReceived)

	eb.Emit(Event{Type: EventScanReceived})
	eb.Emit(Event{Type: EventScannerState})

	if all != 2 {
		t.Errorf("all = %d, want 2", all)
	}
	if scans != 1 {
		t.Errorf("scans = %d, want 1", scans)
	}
}

func TestEventBus_OrderAndTimestamp(t *testing.T) {
	eb := NewEventBus()
	var order []int
	eb.Subscribe(func(evt Event) {
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
		order = append(order, 1)
	})
	eb.Subscribe(func(Event) { order = append(order, 2) })
	eb.Emit(Event{Type: EventNotification})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	eb := NewEventBus()
	var n int
	id := eb.Subscribe(func(Event) { n++ })
	eb.Emit(Event{Type: EventNotification})
	eb.Unsubscribe(id)
	eb.Unsubscribe(id)
	eb.Emit(Event{Type: EventNotification})
	if n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
