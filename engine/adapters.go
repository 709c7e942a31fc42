package engine

import "xmixing/messaging"

// scannerEmitter bridges the broker manager's emitter interface to the EventBus.
type scannerEmitter struct {
	bus *EventBus
}

func (e *scannerEmitter) EmitScannerState(status messaging.Status) {
	e.bus.Emit(Event{Type: EventScannerState, Payload: ScannerStateEvent{Status: status}})
}

func (e *scannerEmitter) EmitScanReceived(ev messaging.ScanEvent) {
	e.bus.Emit(Event{Type: EventScanReceived, Payload: ScanReceivedEvent{Scan: ev}})
}

// busNotifier turns operator notifications into EventBus events.
type busNotifier struct {
	bus *EventBus
}

func (n *busNotifier) Notify(kind, message, caption, icon string) {
	n.bus.Emit(Event{Type: EventNotification, Payload: NotificationEvent{
		Kind:    kind,
		Message: message,
		Caption: caption,
		Icon:    icon,
	}})
}
