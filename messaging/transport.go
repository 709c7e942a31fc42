package messaging

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TransportOptions are the fixed parameters of one broker connection.
type TransportOptions struct {
	BrokerURL       string
	ClientID        string
	Username        string
	Password        string
	ProtocolVersion uint
	CleanSession    bool
	ConnectTimeout  time.Duration
	ReconnectPeriod time.Duration
}

// TransportHooks are called from the transport's own goroutines.
type TransportHooks struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnReconnecting   func()
	OnMessage        func(topic string, payload []byte)
}

// Transport is one physical broker connection. Reconnection after an
// established session drops is the transport's job, at a fixed period.
type Transport interface {
	// Connect blocks until the broker acknowledges or the attempt fails.
	Connect() error
	Subscribe(topics []string) error
	Publish(topic string, payload []byte) error
	Disconnect()
}

// TransportFactory creates a transport. It fails only for bootstrap
// problems such as a malformed broker URL.
type TransportFactory func(opts TransportOptions, hooks TransportHooks) (Transport, error)

type mqttTransport struct {
	client  mqtt.Client
	timeout time.Duration
	period  time.Duration
	hooks   TransportHooks

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMQTTTransport builds a paho client for a ws://, wss:// or tcp:// broker.
func NewMQTTTransport(opts TransportOptions, hooks TransportHooks) (Transport, error) {
	u, err := url.Parse(opts.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "tcp", "ssl", "tls", "mqtt", "mqtts":
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("broker url %q has no host", opts.BrokerURL)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	period := opts.ReconnectPeriod
	if period <= 0 {
		period = 5 * time.Second
	}
	t := &mqttTransport{timeout: timeout, period: period, hooks: hooks, stopChan: make(chan struct{})}

	// paho's own reconnect backs off exponentially, so redialing after a
	// drop is done here at a fixed period instead.
	o := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetProtocolVersion(opts.ProtocolVersion).
		SetCleanSession(opts.CleanSession).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true)

	o.SetOnConnectHandler(func(mqtt.Client) {
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if hooks.OnConnectionLost != nil {
			hooks.OnConnectionLost(err)
		}
		go t.reconnect()
	})
	o.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if hooks.OnMessage != nil {
			hooks.OnMessage(msg.Topic(), msg.Payload())
		}
	})

	t.client = mqtt.NewClient(o)
	return t, nil
}

func (t *mqttTransport) reconnect() {
	redial(t.stopChan, t.period, t.hooks.OnReconnecting, t.Connect)
	select {
	case <-t.stopChan:
		// Disconnect raced a successful redial.
		if t.client.IsConnected() {
			t.client.Disconnect(0)
		}
	default:
	}
}

// redial calls dial every period until it succeeds or stop is closed.
// onReconnecting runs before each attempt.
func redial(stop <-chan struct{}, period time.Duration, onReconnecting func(), dial func() error) {
	timer := time.NewTimer(period)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		if onReconnecting != nil {
			onReconnecting()
		}
		if err := dial(); err == nil {
			return
		}
		timer.Reset(period)
	}
}

func (t *mqttTransport) Connect() error {
	token := t.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (t *mqttTransport) Subscribe(topics []string) error {
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = 0
	}
	token := t.client.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("mqtt subscribe: timed out after %s", t.timeout)
	}
	return token.Error()
}

func (t *mqttTransport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("mqtt publish: timed out after %s", t.timeout)
	}
	return token.Error()
}

func (t *mqttTransport) Disconnect() {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.client.Disconnect(250)
}
