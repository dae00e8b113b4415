package ports

import (
	"context"
	"time"
)

// Message is a raw record on an asynchronous topic. Values are opaque bytes;
// envelope decoding happens at the consumer boundary so malformed payloads can
// be dead-lettered instead of crashing a worker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp time.Time
}

// MessageHandler processes one consumed record. It must never panic the
// pipeline: validation failures and downstream errors are reported via reply
// or dead-letter topics, and the next record is processed regardless.
type MessageHandler func(ctx context.Context, msg Message)

// Publisher publishes records to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Subscriber attaches a handler to a topic with the given worker parallelism.
type Subscriber interface {
	Subscribe(topic string, workers int, handler MessageHandler)
}
