package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultScannerNode labels fallback events from a wildcard topic whose
// device segment is empty.
const DefaultScannerNode = "scanner"

// TimestampLayout matches ISO-8601 UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrEmptyPayload  = errors.New("empty payload")
	ErrBinaryPayload = errors.New("payload is not valid UTF-8 text")
)

// ScanEvent is a normalized scan or measurement. It is not modified after Decode returns it.
type ScanEvent struct {
	NodeID      string         `json:"node_id"`
	Barcode     string         `json:"barcode"`
	Timestamp   string         `json:"timestamp"`
	Location    string         `json:"location,omitempty"`
	ScannerType string         `json:"scanner_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type DecodeKind int

const (
	// KindStructured is a JSON scan object taken as sent.
	KindStructured DecodeKind = iota + 1
	// KindFallback is raw text treated as a bare barcode.
	KindFallback
)

func (k DecodeKind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Decoded is the result of a single decode attempt on an inbound payload.
type Decoded struct {
	Kind  DecodeKind
	Event ScanEvent
}

// Decode normalizes a payload received on topic. subscriptions are the
// filters the topic may have matched; they decide the fallback node ID.
func Decode(topic string, payload []byte, now time.Time, subscriptions []string) (Decoded, error) {
	if !utf8.Valid(payload) {
		return Decoded{}, ErrBinaryPayload
	}
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return Decoded{}, ErrEmptyPayload
	}
	receivedAt := now.UTC().Format(TimestampLayout)

	if ev, ok := decodeStructured([]byte(text)); ok {
		if ev.NodeID == "" {
			ev.NodeID = fallbackNodeID(topic, subscriptions)
		}
		if ev.Timestamp == "" {
			ev.Timestamp = receivedAt
		}
		return Decoded{Kind: KindStructured, Event: ev}, nil
	}

	return Decoded{Kind: KindFallback, Event: ScanEvent{
		NodeID:    fallbackNodeID(topic, subscriptions),
		Barcode:   text,
		Timestamp: receivedAt,
	}}, nil
}

func decodeStructured(data []byte) (ScanEvent, bool) {
	if !bytes.HasPrefix(data, []byte("{")) {
		return ScanEvent{}, false
	}
	var ev ScanEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ScanEvent{}, false
	}
	if strings.TrimSpace(ev.Barcode) == "" {
		return ScanEvent{}, false
	}
	return ev, true
}

// fallbackNodeID names the device for a raw payload. A topic that arrived
// through a wildcard filter is identified by the segment the wildcard captured.
func fallbackNodeID(topic string, subscriptions []string) string {
	for _, filter := range subscriptions {
		if !isWildcard(filter) {
			continue
		}
		if seg, ok := matchTopic(filter, topic); ok {
			if seg == "" {
				return DefaultScannerNode
			}
			return seg
		}
	}
	return topic
}

func isWildcard(filter string) bool {
	return strings.ContainsAny(filter, "+#")
}

// matchTopic reports whether topic matches an MQTT filter and returns the
// level captured by the first '+', if any.
func matchTopic(filter, topic string) (string, bool) {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	captured := ""
	capturedSet := false
	for i, f := range fl {
		if f == "#" {
			return captured, true
		}
		if i >= len(tl) {
			return "", false
		}
		switch f {
		case "+":
			if !capturedSet {
				captured = tl[i]
				capturedSet = true
			}
		default:
			if f != tl[i] {
				return "", false
			}
		}
	}
	if len(fl) != len(tl) {
		return "", false
	}
	return captured, true
}
