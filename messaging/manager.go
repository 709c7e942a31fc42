package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xmixing/config"
)

type LogFunc func(format string, args ...any)

// State is the broker connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting..."
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Status is a point-in-time copy of the connection state.
type Status struct {
	State       State  `json:"-"`
	Text        string `json:"status"`
	IsConnected bool   `json:"is_connected"`
	Detail      string `json:"detail,omitempty"`
}

// Emitter receives reactive-state changes. It is called on the manager's
// goroutine and must not block.
type Emitter interface {
	EmitScannerState(status Status)
	EmitScanReceived(ev ScanEvent)
}

type nopEmitter struct{}

func (nopEmitter) EmitScannerState(Status)    {}
func (nopEmitter) EmitScanReceived(ScanEvent) {}

// Options configure a Manager.
type Options struct {
	Broker config.BrokerConfig
	// Interactive must be true for the manager to open any connection.
	// Headless runs leave it false.
	Interactive bool
	Factory     TransportFactory
	Notifier    Notifier
	Emitter     Emitter
	LogFunc     LogFunc
	Now         func() time.Time
}

type eventKind int

const (
	evAck eventKind = iota + 1
	evLost
	evReconnecting
	evConnectFailed
	evRetry
	evSubscribed
	evMessage
)

type loopEvent struct {
	kind    eventKind
	gen     uint64
	err     error
	topic   string
	payload []byte
}

type command struct {
	fn   func()
	done chan struct{}
}

// Manager owns the station's single broker connection and the scan state
// derived from it. Every mutation runs on one loop goroutine, in arrival order.
type Manager struct {
	opts     Options
	logFn    LogFunc
	now      func() time.Time
	factory  TransportFactory
	notifier Notifier
	emitter  Emitter

	cmds     chan command
	events   chan loopEvent
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// loop-only
	gen   uint64
	retry *time.Timer

	mu        sync.RWMutex
	status    Status
	transport Transport
	created   int
	lastScan  *ScanEvent
	history   *History
}

func NewManager(opts Options) *Manager {
	logFn := opts.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	factory := opts.Factory
	if factory == nil {
		factory = NewMQTTTransport
	}
	var emitter Emitter = nopEmitter{}
	if opts.Emitter != nil {
		emitter = opts.Emitter
	}
	if len(opts.Broker.Topics) == 0 {
		opts.Broker.Topics = append([]string(nil), config.DefaultTopics...)
	}
	m := &Manager{
		opts:     opts,
		logFn:    logFn,
		now:      now,
		factory:  factory,
		notifier: opts.Notifier,
		emitter:  emitter,
		cmds:     make(chan command),
		events:   make(chan loopEvent, 256),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		status:   Status{State: StateDisconnected, Text: StateDisconnected.String()},
		history:  NewHistory(HistoryCapacity),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stopChan:
			m.disconnect()
			return
		case c := <-m.cmds:
			c.fn()
			close(c.done)
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (m *Manager) do(fn func()) {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case m.cmds <- c:
		<-c.done
	case <-m.stopChan:
	}
}

func (m *Manager) post(ev loopEvent) {
	select {
	case m.events <- ev:
	case <-m.stopChan:
	}
}

// Connect opens the broker connection unless one is already up or being
// established. Failures surface as state, never as a return value.
func (m *Manager) Connect() {
	if !m.opts.Interactive {
		return
	}
	m.do(m.connect)
}

// Disconnect closes the connection from any state and leaves the manager
// ready for a fresh Connect.
func (m *Manager) Disconnect() {
	m.do(m.disconnect)
}

// Close disconnects and stops the loop. The manager is unusable afterwards.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.done
}

func (m *Manager) connect() {
	switch m.State() {
	case StateConnected, StateConnecting:
		m.logFn("messaging: already connected or connecting")
		return
	}

	// A transport left over from a dropped or failed session is replaced,
	// never run alongside the new one.
	m.releaseTransport()

	m.gen++
	gen := m.gen
	b := m.opts.Broker
	opts := TransportOptions{
		BrokerURL:       b.URL,
		ClientID:        newClientID(b.ClientPrefix),
		Username:        b.Username,
		Password:        b.Password,
		ProtocolVersion: b.ProtocolVersion,
		CleanSession:    b.CleanSession,
		ConnectTimeout:  b.ConnectTimeout,
		ReconnectPeriod: b.ReconnectPeriod,
	}
	hooks := TransportHooks{
		OnConnect:        func() { m.post(loopEvent{kind: evAck, gen: gen}) },
		OnConnectionLost: func(err error) { m.post(loopEvent{kind: evLost, gen: gen, err: err}) },
		OnReconnecting:   func() { m.post(loopEvent{kind: evReconnecting, gen: gen}) },
		OnMessage: func(topic string, payload []byte) {
			m.post(loopEvent{kind: evMessage, gen: gen, topic: topic, payload: payload})
		},
	}

	m.logFn("messaging: connecting to %s as %s", b.URL, opts.ClientID)
	m.setStatus(StateConnecting, "")

	t, err := m.factory(opts, hooks)
	if err != nil {
		m.logFn("messaging: bootstrap error: %v", err)
		m.setStatusText(StateError, err.Error(), "Failed: "+err.Error())
		return
	}
	m.mu.Lock()
	m.transport = t
	m.created++
	m.mu.Unlock()

	m.attempt(t, gen)
}

func (m *Manager) attempt(t Transport, gen uint64) {
	go func() {
		if err := t.Connect(); err != nil {
			m.post(loopEvent{kind: evConnectFailed, gen: gen, err: err})
		}
	}()
}

func (m *Manager) disconnect() {
	m.stopRetry()
	m.gen++ // late callbacks from the old transport are ignored
	if m.releaseTransport() {
		m.logFn("messaging: disconnected")
	}
	m.setStatus(StateDisconnected, "")
}

func (m *Manager) releaseTransport() bool {
	m.stopRetry()
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()
	if t == nil {
		return false
	}
	t.Disconnect()
	return true
}

func (m *Manager) stopRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) handle(ev loopEvent) {
	if ev.gen != m.gen {
		return
	}
	switch ev.kind {
	case evAck:
		m.stopRetry()
		m.logFn("messaging: connected")
		m.setStatus(StateConnected, "")
		m.subscribe(ev.gen)
	case evSubscribed:
		if ev.err != nil {
			m.logFn("messaging: subscribe failed: %v", ev.err)
			return
		}
		for _, topic := range m.opts.Broker.Topics {
			m.logFn("messaging: subscribed to %s", topic)
		}
	case evLost:
		msg := "connection lost"
		if ev.err != nil {
			msg = ev.err.Error()
		}
		m.logFn("messaging: connection lost: %s", msg)
		m.setStatus(StateError, msg)
	case evReconnecting:
		m.setStatus(StateReconnecting, "")
	case evConnectFailed:
		m.logFn("messaging: connect failed: %v", ev.err)
		m.setStatus(StateError, ev.err.Error())
		m.scheduleRetry(ev.gen)
	case evRetry:
		m.retry = nil
		if m.State() != StateError {
			return
		}
		m.mu.RLock()
		t := m.transport
		m.mu.RUnlock()
		if t == nil {
			return
		}
		m.setStatus(StateConnecting, "")
		m.attempt(t, ev.gen)
	case evMessage:
		m.ingest(ev.topic, ev.payload)
	}
}

func (m *Manager) subscribe(gen uint64) {
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()
	if t == nil {
		return
	}
	topics := append([]string(nil), m.opts.Broker.Topics...)
	go func() {
		m.post(loopEvent{kind: evSubscribed, gen: gen, err: t.Subscribe(topics)})
	}()
}

func (m *Manager) scheduleRetry(gen uint64) {
	m.stopRetry()
	period := m.opts.Broker.ReconnectPeriod
	if period <= 0 {
		period = 5 * time.Second
	}
	m.retry = time.AfterFunc(period, func() {
		m.post(loopEvent{kind: evRetry, gen: gen})
	})
}

func (m *Manager) ingest(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logFn("messaging: message processing error on %s: %v", topic, r)
		}
	}()

	d, err := Decode(topic, payload, m.now(), m.opts.Broker.Topics)
	if err != nil {
		m.logFn("messaging: dropped message on %s: %v", topic, err)
		return
	}
	ev := d.Event
	m.logFn("messaging: %s message on %s: barcode=%s node=%s", d.Kind, topic, ev.Barcode, ev.NodeID)

	m.mu.Lock()
	last := ev
	m.lastScan = &last
	m.history.Push(ev)
	m.mu.Unlock()

	m.safeEmit(func() { m.emitter.EmitScanReceived(ev) })
	safeNotify(m.notifier, m.logFn, "info", "Scan: "+ev.Barcode, "From "+ev.NodeID, "qr_code_scanner")
}

func (m *Manager) setStatus(s State, detail string) {
	text := s.String()
	if s == StateError && detail != "" {
		text = "Error: " + detail
	}
	m.setStatusText(s, detail, text)
}

func (m *Manager) setStatusText(s State, detail, text string) {
	st := Status{State: s, Text: text, IsConnected: s == StateConnected, Detail: detail}
	m.mu.Lock()
	changed := m.status != st
	m.status = st
	m.mu.Unlock()
	if changed {
		m.safeEmit(func() { m.emitter.EmitScannerState(st) })
	}
}

// safeEmit keeps a failing subscriber from stopping the loop.
func (m *Manager) safeEmit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logFn("messaging: emitter failed: %v", r)
		}
	}()
	fn()
}

// Publish sends payload on topic. It is silently dropped unless the
// manager is connected. Strings and byte slices are sent as-is; anything
// else is JSON-encoded.
func (m *Manager) Publish(topic string, payload any) error {
	m.mu.RLock()
	t := m.transport
	connected := m.status.State == StateConnected
	m.mu.RUnlock()
	if !connected || t == nil {
		return nil
	}
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return t.Publish(topic, data)
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.State
}

// Status returns a copy of the current connection status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// StatusText returns the display string for the connection state.
func (m *Manager) StatusText() string {
	return m.Status().Text
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastScan returns the most recent scan, or nil.
func (m *Manager) LastScan() *ScanEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastScan == nil {
		return nil
	}
	ev := *m.lastScan
	return &ev
}

// History returns the retained scans, newest first.
func (m *Manager) History() []ScanEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Snapshot()
}

// TransportsCreated returns how many transports this manager has built.
func (m *Manager) TransportsCreated() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created
}

func newClientID(prefix string) string {
	if prefix == "" {
		prefix = "xmixing-web-"
	}
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
