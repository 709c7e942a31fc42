package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"xmixing/engine"
)

// SSEEvent is the typed envelope sent to SSE clients.
type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sseClient struct {
	events chan SSEEvent
}

// EventHub fans events out to every connected browser. It is also the
// station's toast sink.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[*sseClient]struct{}
	broadcast chan SSEEvent
	stopOnce  sync.Once
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[*sseClient]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// Broadcast queues an event for all clients. It never blocks; events are
// dropped when the hub is backed up.
func (h *EventHub) Broadcast(evt SSEEvent) {
	select {
	case h.broadcast <- evt:
	default:
	}
}

// Notify shows a toast in every connected browser.
func (h *EventHub) Notify(kind, message, caption, icon string) {
	h.Broadcast(SSEEvent{Type: "notify", Data: engine.NotificationEvent{
		Kind:    kind,
		Message: message,
		Caption: caption,
		Icon:    icon,
	}})
}

// ClientCount returns the number of connected SSE clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) register(c *sseClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.events)
	h.mu.Unlock()
}

func (h *EventHub) run() {
	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.events <- evt:
				default:
					// slow client
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleSSE streams hub events to one browser until it disconnects.
func (h *EventHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &sseClient{events: make(chan SSEEvent, 64)}
	h.register(client)
	defer h.unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt, ok := <-client.events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// SetupEngineListeners wires engine events to SSE broadcasts.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.Subscribe(func(evt engine.Event) {
		switch evt.Type {
		case engine.EventScannerState:
			p := evt.Payload.(engine.ScannerStateEvent)
			h.Broadcast(SSEEvent{Type: "scanner-status", Data: p.Status})
		case engine.EventScanReceived:
			p := evt.Payload.(engine.ScanReceivedEvent)
			h.Broadcast(SSEEvent{Type: "scan", Data: p.Scan})
		case engine.EventNotification:
			p := evt.Payload.(engine.NotificationEvent)
			h.Notify(p.Kind, p.Message, p.Caption, p.Icon)
		case engine.EventSessionChanged:
			h.Broadcast(SSEEvent{Type: "session", Data: evt.Payload})
		}
	})

	log.Printf("www: SSE listeners wired to engine events")
}
