package messaging

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"xmixing/config"
)

const relayBuffer = 128

// MessageWriter is the subset of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Relay forwards normalized scans to a Kafka topic. Forwarding never blocks
// the caller; when the buffer is full the scan is dropped and logged.
type Relay struct {
	writer MessageWriter
	topic  string
	logFn  LogFunc

	queue    chan ScanEvent
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewKafkaWriter builds the production writer for cfg.
func NewKafkaWriter(cfg config.RelayConfig) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewRelay(w MessageWriter, topic string, logFn LogFunc) *Relay {
	if logFn == nil {
		logFn = log.Printf
	}
	r := &Relay{
		writer:   w,
		topic:    topic,
		logFn:    logFn,
		queue:    make(chan ScanEvent, relayBuffer),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Forward queues ev for delivery.
func (r *Relay) Forward(ev ScanEvent) {
	select {
	case <-r.stopChan:
		return
	default:
	}
	select {
	case r.queue <- ev:
	default:
		r.logFn("relay: queue full, dropping scan %s from %s", ev.Barcode, ev.NodeID)
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-r.stopChan:
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) write(ev ScanEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logFn("relay: encode scan: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = r.writer.WriteMessages(ctx, kafkago.Message{
		Topic: r.topic,
		Key:   []byte(ev.NodeID),
		Value: data,
	})
	if err != nil {
		r.logFn("relay: write to %s: %v", r.topic, err)
	}
}

// Close drains queued scans and closes the writer.
func (r *Relay) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.done
	return r.writer.Close()
}
