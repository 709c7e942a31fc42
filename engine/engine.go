package engine

import (
	"context"
	"log"
	"sync"

	"xmixing/config"
	"xmixing/guard"
	"xmixing/messaging"
	"xmixing/session"
	"xmixing/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	DB        *store.DB // nil unless session storage is "database"
	Session   *session.Store
	// Transport builds broker connections; nil uses paho.
	Transport messaging.TransportFactory
	// RelayWriter receives forwarded scans; nil disables the relay.
	RelayWriter messaging.MessageWriter
	Headless    bool
	LogFunc     LogFunc
}

// Engine owns the station's long-lived components and the EventBus that
// connects them to the web layer.
type Engine struct {
	cfg         *config.Config
	db          *store.DB
	session     *session.Store
	guard       *guard.Guard
	scanner     *messaging.Manager
	relay       *messaging.Relay
	transport   messaging.TransportFactory
	relayWriter messaging.MessageWriter
	headless    bool
	Events      *EventBus
	logFn       LogFunc
	stopOnce    sync.Once
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:         c.AppConfig,
		db:          c.DB,
		session:     c.Session,
		transport:   c.Transport,
		relayWriter: c.RelayWriter,
		headless:    c.Headless,
		Events:      NewEventBus(),
		logFn:       logFn,
	}
}

// Start builds the guard and broker manager, wires event handlers, and, for
// an interactive run, opens the broker connection.
func (e *Engine) Start() {
	e.guard = guard.New(e.session, e.cfg.Guard, guard.LogFunc(e.logFn))

	if e.relayWriter != nil {
		e.relay = messaging.NewRelay(e.relayWriter, e.cfg.Relay.Topic, messaging.LogFunc(e.logFn))
	}

	e.scanner = messaging.NewManager(messaging.Options{
		Broker:      e.cfg.Broker,
		Interactive: !e.headless,
		Factory:     e.transport,
		Notifier: messaging.MultiNotifier{
			messaging.LogNotifier{LogFunc: messaging.LogFunc(e.logFn)},
			&busNotifier{bus: e.Events},
		},
		Emitter: &scannerEmitter{bus: e.Events},
		LogFunc: messaging.LogFunc(e.logFn),
	})

	e.wireEventHandlers()

	if e.headless {
		e.logFn("engine: headless run, broker connection disabled")
	} else {
		e.scanner.Connect()
	}
	e.logFn("engine: started")
}

func (e *Engine) wireEventHandlers() {
	if e.relay != nil {
		e.Events.SubscribeTypes(func(evt Event) {
			e.relay.Forward(evt.Payload.(ScanReceivedEvent).Scan)
		}, EventScanReceived)
	}

	e.Events.SubscribeTypes(func(evt Event) {
		st := evt.Payload.(ScannerStateEvent).Status
		if st.State == messaging.StateError {
			e.logFn("engine: scanner %s", st.Text)
		}
	}, EventScannerState)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.scanner != nil {
			e.scanner.Close()
		}
		if e.relay != nil {
			if err := e.relay.Close(); err != nil {
				e.logFn("engine: close relay: %v", err)
			}
		}
		e.logFn("engine: stopped")
	})
}

// Login records an authenticated session and announces it.
func (e *Engine) Login(ctx context.Context, identity session.Identity, token string) error {
	if err := e.session.Login(ctx, identity, token); err != nil {
		return err
	}
	e.Events.Emit(Event{Type: EventSessionChanged, Payload: SessionChangedEvent{Username: identity.Username, SignedIn: true}})
	return nil
}

// Logout clears the session and announces it.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.session.Logout(ctx); err != nil {
		return err
	}
	e.Events.Emit(Event{Type: EventSessionChanged, Payload: SessionChangedEvent{}})
	return nil
}

// Notify sends an operator toast through the EventBus.
func (e *Engine) Notify(kind, message, caption, icon string) {
	(&busNotifier{bus: e.Events}).Notify(kind, message, caption, icon)
}

// Accessors
func (e *Engine) DB() *store.DB               { return e.db }
func (e *Engine) AppConfig() *config.Config   { return e.cfg }
func (e *Engine) Session() *session.Store     { return e.session }
func (e *Engine) Guard() *guard.Guard         { return e.guard }
func (e *Engine) Scanner() *messaging.Manager { return e.scanner }
func (e *Engine) Headless() bool              { return e.headless }
