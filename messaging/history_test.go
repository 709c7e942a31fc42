package messaging

import (
	"fmt"
	"testing"
)

func TestHistory_NewestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 2; i++ {
		h.Push(ScanEvent{Barcode: fmt.Sprint(i)})
	}
	got := h.Snapshot()
	if len(got) != 2 || got[0].Barcode != "2" || got[1].Barcode != "1" {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(ScanEvent{Barcode: fmt.Sprint(i)})
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	want := []string{"5", "4", "3"}
	for i, ev := range h.Snapshot() {
		if ev.Barcode != want[i] {
			t.Errorf("snapshot[%d] = %q, want %q", i, ev.Barcode, want[i])
		}
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory(2)
	h.Push(ScanEvent{Barcode: "a"})
	snap := h.Snapshot()
	snap[0].Barcode = "mutated"
	if h.Snapshot()[0].Barcode != "a" {
		t.Error("snapshot aliases the ring")
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(0)
	h.Push(ScanEvent{Barcode: "a"})
	h.Reset()
	if h.Len() != 0 || len(h.Snapshot()) != 0 {
		t.Errorf("after reset len = %d", h.Len())
	}
	h.Push(ScanEvent{Barcode: "b"})
	if got := h.Snapshot(); len(got) != 1 || got[0].Barcode != "b" {
		t.Errorf("snapshot = %+v", got)
	}
}
