package engine

import (
	"time"

	"xmixing/messaging"
)

type EventType int

const (
	EventScannerState EventType = iota + 1
	EventScanReceived
	EventNotification
	EventSessionChanged
)

func (t EventType) String() string {
	switch t {
	case EventScannerState:
		return "scanner-state"
	case EventScanReceived:
		return "scan"
	case EventNotification:
		return "notify"
	case EventSessionChanged:
		return "session"
	default:
		return "unknown"
	}
}

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// --- Event payloads ---

// ScannerStateEvent carries the broker connection status after a change.
type ScannerStateEvent struct {
	Status messaging.Status
}

type ScanReceivedEvent struct {
	Scan messaging.ScanEvent
}

// NotificationEvent is an operator toast.
type NotificationEvent struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
	Caption string `json:"caption,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

type SessionChangedEvent struct {
	Username string `json:"username,omitempty"`
	SignedIn bool   `json:"signed_in"`
}
