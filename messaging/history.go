package messaging

// HistoryCapacity is the number of scans kept for the UI.
const HistoryCapacity = 50

// History is a fixed-size ring of scan events, newest first.
type History struct {
	buf  []ScanEvent
	head int
	size int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{buf: make([]ScanEvent, capacity)}
}

// Push inserts ev at the front, evicting the oldest entry when full.
func (h *History) Push(ev ScanEvent) {
	h.head = (h.head - 1 + len(h.buf)) % len(h.buf)
	h.buf[h.head] = ev
	if h.size < len(h.buf) {
		h.size++
	}
}

func (h *History) Len() int { return h.size }

// Snapshot returns the events newest first.
func (h *History) Snapshot() []ScanEvent {
	out := make([]ScanEvent, h.size)
	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

func (h *History) Reset() {
	clear(h.buf)
	h.head, h.size = 0, 0
}
