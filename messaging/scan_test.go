package messaging

import (
	"errors"
	"testing"
	"time"
)

var subs = []string{"scanner/+/scan", "scale-1", "scale-2", "scale-3"}

func TestDecode_Structured(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := `{"node_id":"S1","barcode":"X9","timestamp":"2024-01-01T00:00:00Z","location":"dock","metadata":{"weight":12.5}}`

	d, err := Decode("scanner/dock-3/scan", []byte(payload), now, subs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Kind != KindStructured {
		t.Errorf("kind = %v, want structured", d.Kind)
	}
	ev := d.Event
	if ev.NodeID != "S1" || ev.Barcode != "X9" || ev.Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Location != "dock" {
		t.Errorf("location = %q, want dock", ev.Location)
	}
	if ev.Metadata["weight"] != 12.5 {
		t.Errorf("metadata = %v", ev.Metadata)
	}
}

func TestDecode_StructuredDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	d, err := Decode("scanner/dock-3/scan", []byte(`{"barcode":"X9"}`), now, subs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Kind != KindStructured {
		t.Errorf("kind = %v, want structured", d.Kind)
	}
	if d.Event.NodeID != "dock-3" {
		t.Errorf("node_id = %q, want dock-3", d.Event.NodeID)
	}
	if d.Event.Timestamp != "2026-01-02T03:04:05.006Z" {
		t.Errorf("timestamp = %q", d.Event.Timestamp)
	}
}

func TestDecode_Fallback(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name    string
		topic   string
		payload string
		node    string
		barcode string
	}{
		{"plain text on literal topic", "scale-2", "ABC123", "scale-2", "ABC123"},
		{"whitespace trimmed", "scale-1", "  12.40 kg \r\n", "scale-1", "12.40 kg"},
		{"wildcard device segment", "scanner/s7/scan", "LOT-1", "s7", "LOT-1"},
		{"empty wildcard segment", "scanner//scan", "LOT-2", DefaultScannerNode, "LOT-2"},
		{"json without barcode", "scale-3", `{"weight":3}`, "scale-3", `{"weight":3}`},
		{"json with blank barcode", "scale-3", `{"barcode":"  "}`, "scale-3", `{"barcode":"  "}`},
		{"malformed json", "scale-1", `{"barcode":`, "scale-1", `{"barcode":`},
		{"json array", "scale-1", `["a"]`, "scale-1", `["a"]`},
		{"unsubscribed topic", "line/4", "Z", "line/4", "Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode(tt.topic, []byte(tt.payload), now, subs)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if d.Kind != KindFallback {
				t.Errorf("kind = %v, want fallback", d.Kind)
			}
			if d.Event.NodeID != tt.node {
				t.Errorf("node_id = %q, want %q", d.Event.NodeID, tt.node)
			}
			if d.Event.Barcode != tt.barcode {
				t.Errorf("barcode = %q, want %q", d.Event.Barcode, tt.barcode)
			}
			if d.Event.Timestamp != "2026-01-02T02:04:05.000Z" {
				t.Errorf("timestamp = %q", d.Event.Timestamp)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	now := time.Now()
	if _, err := Decode("scale-1", nil, now, subs); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("nil payload: err = %v, want ErrEmptyPayload", err)
	}
	if _, err := Decode("scale-1", []byte(" \t\n"), now, subs); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("blank payload: err = %v, want ErrEmptyPayload", err)
	}
	if _, err := Decode("scale-1", []byte{0xc3, 0x28}, now, subs); !errors.Is(err, ErrBinaryPayload) {
		t.Errorf("binary payload: err = %v, want ErrBinaryPayload", err)
	}
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter, topic string
		captured      string
		ok            bool
	}{
		{"scanner/+/scan", "scanner/a/scan", "a", true},
		{"scanner/+/scan", "scanner/a/b/scan", "", false},
		{"scanner/+/scan", "scanner/a", "", false},
		{"scanner/#", "scanner/a/b", "", true},
		{"+/+/scan", "x/y/scan", "x", true},
		{"scale-1", "scale-1", "", true},
		{"scale-1", "scale-2", "", false},
	}
	for _, tt := range tests {
		captured, ok := matchTopic(tt.filter, tt.topic)
		if ok != tt.ok || captured != tt.captured {
			t.Errorf("matchTopic(%q, %q) = %q, %v, want %q, %v", tt.filter, tt.topic, captured, ok, tt.captured, tt.ok)
		}
	}
}
