// Package bridge connects a consumer to a producer: every consumed message
// is published again and acknowledged once the publish succeeded.
package bridge

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/amqpconnector/pkg/consumer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

// Publisher is the outbound side, satisfied by *producer.Producer.
type Publisher interface {
	Apply(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// Forwarder is a consumer.EventListener that forwards messages to a
// Publisher. A failed publish leaves the delivery unacknowledged.
type Forwarder struct {
	publisher Publisher
	logger    rabbit.Logger
	forwarded *prometheus.CounterVec

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

var _ consumer.EventListener = (*Forwarder)(nil)

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithConcurrency lets up to n publishes run at once. The default of 1
// forwards in delivery order.
func WithConcurrency(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.group.SetLimit(n)
		}
	}
}

// WithForwardCounter counts outcomes in c, labelled by status.
func WithForwardCounter(c *prometheus.CounterVec) Option {
	return func(f *Forwarder) { f.forwarded = c }
}

// NewForwarder returns a Forwarder publishing through p.
func NewForwarder(p Publisher, logger rabbit.Logger, opts ...Option) *Forwarder {
	f := &Forwarder{
		publisher: p,
		logger:    rabbit.OrNop(logger),
	}
	f.group.SetLimit(1)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnEvent schedules msg for publishing. It blocks while the concurrency
// limit is reached, which throttles the consumer.
func (f *Forwarder) OnEvent(ctx context.Context, msg *message.Message, done consumer.CompletionHandle) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.logger.Debug("forwarder closed, leaving message unacknowledged", nil, map[string]interface{}{
			"delivery_tag": msg.Attributes.Envelope.DeliveryTag,
		})
		return
	}

	f.group.Go(func() error {
		f.forward(ctx, msg, done)
		return nil
	})
}

func (f *Forwarder) forward(ctx context.Context, msg *message.Message, done consumer.CompletionHandle) {
	out, err := f.publisher.Apply(ctx, msg)
	if err != nil {
		f.count("error")
		f.logger.Error("failed to forward message", err, map[string]interface{}{
			"delivery_tag":   msg.Attributes.Envelope.DeliveryTag,
			"routing_key":    msg.Attributes.Envelope.RoutingKey,
			"correlation_id": msg.CorrelationID(),
		})
		return
	}
	f.count("success")
	done(ctx, out)
}

func (f *Forwarder) count(status string) {
	if f.forwarded != nil {
		f.forwarded.WithLabelValues(status).Inc()
	}
}

// Close stops accepting messages and waits for scheduled publishes.
func (f *Forwarder) Close() {
	_ = f.CloseContext(context.Background())
}

// CloseContext is Close with the wait bounded by ctx. Publishes still running
// when ctx expires are left to finish on their own.
func (f *Forwarder) CloseContext(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		// OnEvent holds the read lock while waiting for a free slot.
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		_ = f.group.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
