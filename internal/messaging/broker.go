// Package messaging provides an in-memory topic broker with the delivery
// semantics the fulfillment pipeline needs: buffered at-least-once handoff,
// per-topic worker consumption, and a dead-letter topic like any other topic.
// It is suitable for single-instance deployments and tests; a Kafka-backed
// implementation can replace it behind the ports interfaces.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qslv/transaction-engine/internal/core/ports"
)

// Broker is an in-memory publisher/subscriber. Each topic is one buffered
// channel; records published before a subscriber attaches are retained up to
// the buffer size.
type Broker struct {
	mu      sync.Mutex
	topics  map[string]chan ports.Message
	buffer  int
	wg      sync.WaitGroup
	closing chan struct{}
	closed  bool
}

// NewBroker creates a broker whose topics buffer up to bufferSize records
// before Publish blocks.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Broker{
		topics:  make(map[string]chan ports.Message),
		buffer:  bufferSize,
		closing: make(chan struct{}),
	}
}

var _ ports.Publisher = (*Broker)(nil)
var _ ports.Subscriber = (*Broker)(nil)

func (b *Broker) topic(name string) chan ports.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan ports.Message, b.buffer)
		b.topics[name] = ch
	}
	return ch
}

// Publish enqueues a record. It blocks when the topic buffer is full and
// fails once the context is done or the broker is closed.
func (b *Broker) Publish(ctx context.Context, topic, key string, value []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	b.mu.Unlock()

	msg := ports.Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
	}
	select {
	case b.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closing:
		return fmt.Errorf("broker is closed")
	}
}

// Subscribe starts the given number of worker goroutines consuming the topic.
// Workers run until Close.
func (b *Broker) Subscribe(topic string, workers int, handler ports.MessageHandler) {
	if workers <= 0 {
		workers = 1
	}
	ch := b.topic(topic)
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker(ch, handler)
	}
}

func (b *Broker) worker(ch chan ports.Message, handler ports.MessageHandler) {
	defer b.wg.Done()
	for {
		select {
		case <-b.closing:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handler(context.Background(), msg)
		}
	}
}

// Close stops publishing and waits for in-flight handlers, honoring the
// context deadline.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closing)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
