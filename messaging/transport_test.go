package messaging

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewMQTTTransport_ValidatesURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr string
	}{
		{"ws://152.42.166.150:15675/ws", ""},
		{"wss://broker.example:443/mqtt", ""},
		{"tcp://localhost:1883", ""},
		{"http://broker.example/ws", "unsupported broker scheme"},
		{"ws:///ws", "has no host"},
		{"::not a url", "parse broker url"},
	}
	for _, tt := range tests {
		_, err := NewMQTTTransport(TransportOptions{
			BrokerURL:       tt.url,
			ClientID:        "xmixing-web-test",
			ProtocolVersion: 4,
			ConnectTimeout:  time.Second,
			ReconnectPeriod: time.Second,
		}, TransportHooks{})
		switch {
		case tt.wantErr == "" && err != nil:
			t.Errorf("%s: unexpected error %v", tt.url, err)
		case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
			t.Errorf("%s: err = %v, want %q", tt.url, err, tt.wantErr)
		}
	}
}

func TestManager_BadBrokerURLFailsBootstrap(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Broker.URL = "http://broker.example/ws"
		o.Factory = NewMQTTTransport
	})
	h.m.Connect()
	if h.m.State() != StateError {
		t.Fatalf("state = %v, want Error", h.m.State())
	}
	if !strings.HasPrefix(h.m.StatusText(), "Failed: unsupported broker scheme") {
		t.Errorf("status = %q", h.m.StatusText())
	}
	if h.m.TransportsCreated() != 0 {
		t.Errorf("transports = %d, want 0", h.m.TransportsCreated())
	}
}

func TestRedial_FixedPeriodUntilSuccess(t *testing.T) {
	const period = 20 * time.Millisecond
	var mu sync.Mutex
	var dials []time.Time
	reconnecting := 0

	start := time.Now()
	redial(make(chan struct{}), period, func() {
		mu.Lock()
		reconnecting++
		mu.Unlock()
	}, func() error {
		mu.Lock()
		defer mu.Unlock()
		dials = append(dials, time.Now())
		if len(dials) < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if len(dials) != 3 {
		t.Fatalf("dials = %d, want 3", len(dials))
	}
	if reconnecting != 3 {
		t.Errorf("reconnecting = %d, want 3", reconnecting)
	}
	prev := start
	for i, at := range dials {
		if gap := at.Sub(prev); gap < period {
			t.Errorf("dial %d after %v, want at least %v", i, gap, period)
		}
		prev = at
	}
}

func TestRedial_StopsWhenClosed(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	var mu sync.Mutex
	dials := 0
	go func() {
		redial(stop, 5*time.Millisecond, nil, func() error {
			mu.Lock()
			defer mu.Unlock()
			dials++
			return errors.New("connection refused")
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("redial did not return after stop")
	}
	mu.Lock()
	after := dials
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if dials != after {
		t.Errorf("dials grew from %d to %d after stop", after, dials)
	}
}
