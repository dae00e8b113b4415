package messaging_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/messaging"
)

type BrokerTestSuite struct {
	suite.Suite
	broker *messaging.Broker
}

func (s *BrokerTestSuite) SetupTest() {
	s.broker = messaging.NewBroker(16)
}

func (s *BrokerTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.broker.Close(ctx)
}

// collector accumulates delivered messages and signals each arrival.
type collector struct {
	mu       sync.Mutex
	messages []ports.Message
	arrived  chan struct{}
}

func newCollector() *collector {
	return &collector{arrived: make(chan struct{}, 64)}
}

func (c *collector) handle(_ context.Context, msg ports.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *collector) await(t *testing.T, n int) []ports.Message {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.arrived:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (s *BrokerTestSuite) TestPublishSubscribe() {
	c := newCollector()
	s.broker.Subscribe("orders", 1, c.handle)

	err := s.broker.Publish(context.Background(), "orders", "k1", []byte("v1"))
	s.Require().NoError(err)

	messages := c.await(s.T(), 1)
	s.Equal("orders", messages[0].Topic)
	s.Equal("k1", messages[0].Key)
	s.Equal([]byte("v1"), messages[0].Value)
	s.False(messages[0].Timestamp.IsZero())
}

func (s *BrokerTestSuite) TestBuffersBeforeSubscribe() {
	for i := 0; i < 5; i++ {
		err := s.broker.Publish(context.Background(), "orders", "k", []byte{byte(i)})
		s.Require().NoError(err)
	}

	c := newCollector()
	s.broker.Subscribe("orders", 1, c.handle)

	messages := c.await(s.T(), 5)
	s.Len(messages, 5)
	// Single worker, single channel: arrival order is publish order
	for i, msg := range messages {
		s.Equal([]byte{byte(i)}, msg.Value)
	}
}

func (s *BrokerTestSuite) TestTopicsAreIndependent() {
	a := newCollector()
	b := newCollector()
	s.broker.Subscribe("topic-a", 1, a.handle)
	s.broker.Subscribe("topic-b", 1, b.handle)

	s.Require().NoError(s.broker.Publish(context.Background(), "topic-a", "k", []byte("a")))
	s.Require().NoError(s.broker.Publish(context.Background(), "topic-b", "k", []byte("b")))

	s.Equal([]byte("a"), a.await(s.T(), 1)[0].Value)
	s.Equal([]byte("b"), b.await(s.T(), 1)[0].Value)
}

func (s *BrokerTestSuite) TestMultipleWorkersShareTopic() {
	c := newCollector()
	s.broker.Subscribe("orders", 4, c.handle)

	for i := 0; i < 10; i++ {
		s.Require().NoError(s.broker.Publish(context.Background(), "orders", "k", []byte{byte(i)}))
	}

	messages := c.await(s.T(), 10)
	s.Len(messages, 10)
}

func (s *BrokerTestSuite) TestPublishAfterCloseFails() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.broker.Close(ctx))

	err := s.broker.Publish(context.Background(), "orders", "k", []byte("v"))
	s.Require().Error(err)
}

func (s *BrokerTestSuite) TestPublishHonorsContext() {
	tiny := messaging.NewBroker(1)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tiny.Close(ctx)
	}()

	// Fill the buffer; no subscriber drains it
	s.Require().NoError(tiny.Publish(context.Background(), "orders", "k", []byte("v")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tiny.Publish(ctx, "orders", "k", []byte("v"))
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}

func (s *BrokerTestSuite) TestCloseIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.broker.Close(ctx))
	s.Require().NoError(s.broker.Close(ctx))
}

func TestBrokerTestSuite(t *testing.T) {
	suite.Run(t, new(BrokerTestSuite))
}
