package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

// setup prepares ch for consumption and registers the consumer.
func (c *Consumer) setup(ch rabbit.Channel) (<-chan amqp.Delivery, error) {
	if c.cfg.PrefetchCount > 0 {
		if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
			c.logger.Error("failed to set QoS", err, map[string]interface{}{
				"prefetch_count": c.cfg.PrefetchCount,
			})
			return nil, &rabbit.ChannelError{Op: "qos", Err: err}
		}
	}

	start := time.Now()
	declared, err := rabbit.DeclareIfRequested(ch, c.cfg.QueueName, c.cfg.QueueDeclaration, true)
	if declared {
		c.observe(observability.OperationDeclare, time.Since(start), err, 0)
	}
	if err != nil {
		c.logger.Error("failed to declare queue", err, map[string]interface{}{
			"queue": c.cfg.QueueName,
		})
		return nil, err
	}

	deliveries, err := ch.Consume(
		c.cfg.QueueName,
		c.cfg.ConsumerTag,
		c.mode == AutoAck,
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		c.logger.Error("error in establishing consumer for rabbit", err, map[string]interface{}{
			"queue": c.cfg.QueueName,
		})
		return nil, &rabbit.ConsumeError{Queue: c.cfg.QueueName, Err: err}
	}
	return deliveries, nil
}

// run dispatches deliveries until ctx ends. On channel loss it recovers when
// the endpoint allows it and stops otherwise.
func (c *Consumer) run(ctx context.Context, session *rabbit.Session, ch rabbit.Channel, deliveries <-chan amqp.Delivery, listener EventListener) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer is shutting down due to context cancellation", ctx.Err(), map[string]interface{}{
				"queue": c.cfg.QueueName,
			})
			return

		case d, ok := <-deliveries:
			if ok {
				c.handle(ctx, ch, d, listener)
				continue
			}
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn("consumer delivery channel closed", nil, map[string]interface{}{
				"queue":              c.cfg.QueueName,
				"automatic_recovery": session.Endpoint().AutomaticRecovery,
			})
			if !session.Endpoint().AutomaticRecovery {
				c.logger.Error(fmt.Sprintf("consumer stopped, broker connection lost (queue=[%s])", c.cfg.QueueName), rabbit.ErrConnectionLost, nil)
				return
			}

			var next <-chan amqp.Delivery
			start := time.Now()
			recovered, err := session.Recover(ctx, func(fresh rabbit.Channel) error {
				var setupErr error
				next, setupErr = c.setup(fresh)
				return setupErr
			})
			if ctx.Err() == nil {
				// Deliveries of the lost channel are back on the queue either way.
				c.observe(observability.OperationRecover, time.Since(start), err, 0)
			}
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Error("consumer recovery failed", err, map[string]interface{}{
						"queue": c.cfg.QueueName,
					})
				}
				return
			}
			ch, deliveries = recovered, next
		}
	}
}

// handle decodes one delivery and hands it to the listener.
func (c *Consumer) handle(ctx context.Context, ch rabbit.Channel, d amqp.Delivery, listener EventListener) {
	start := time.Now()
	tag := d.DeliveryTag

	msg := Decode(d, c.mimeType)
	c.transition(tag, Delivered)
	c.observe(observability.OperationConsume, time.Since(start), nil, int64(len(d.Body)))

	c.logger.Debug("message consumed from rabbit", nil, map[string]interface{}{
		"queue":        c.cfg.QueueName,
		"delivery_tag": tag,
		"routing_key":  d.RoutingKey,
		"size":         len(d.Body),
	})

	var done CompletionHandle
	if c.mode == AutoAck {
		c.transition(tag, Acked)
		done = noopCompletion
	} else {
		done = c.completion(ch, tag)
	}

	ctx, finish := c.startSpan(ctx, d)
	defer finish()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked while handling message", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"queue":        c.cfg.QueueName,
				"delivery_tag": tag,
			})
		}
	}()

	listener.OnEvent(ctx, msg, done)
}

// completion returns the handle that acknowledges tag on the channel the
// delivery arrived on. Only the first invocation acknowledges.
func (c *Consumer) completion(ch rabbit.Channel, tag uint64) CompletionHandle {
	var once sync.Once
	return func(ctx context.Context, _ *message.Message) {
		once.Do(func() { c.ack(ch, tag) })
	}
}

// ack sends a single, non-multiple basic.ack. Failures are logged and recorded
// as AckFailed; they never reach the pipeline.
func (c *Consumer) ack(ch rabbit.Channel, tag uint64) {
	start := time.Now()
	err := ch.Ack(tag, false)
	c.observe(observability.OperationAck, time.Since(start), err, 0)

	if err != nil {
		ackErr := &rabbit.AckError{DeliveryTag: tag, Err: err}
		c.logger.Error(fmt.Sprintf(rabbit.MsgAckFailed, tag), ackErr, map[string]interface{}{
			"queue":        c.cfg.QueueName,
			"delivery_tag": tag,
		})
		c.transition(tag, AckFailed)
		return
	}
	c.transition(tag, Acked)
}

func (c *Consumer) transition(tag uint64, state DeliveryState) {
	if c.stateHook != nil {
		c.stateHook(tag, state)
	}
}

func (c *Consumer) startSpan(ctx context.Context, d amqp.Delivery) (context.Context, func()) {
	if c.tracer == nil {
		return ctx, func() {}
	}
	if carrier := stringHeaders(d.Headers); len(carrier) > 0 {
		ctx = c.tracer.SetCarrierOnContext(ctx, carrier)
	}
	ctx, span := c.tracer.StartSpan(ctx, "rabbit.consume")
	c.tracer.SetAttributes(span, map[string]interface{}{
		"messaging.system":               "rabbitmq",
		"messaging.destination.name":     c.cfg.QueueName,
		"messaging.rabbitmq.routing_key": d.RoutingKey,
		"messaging.message.id":           d.MessageId,
		"messaging.delivery_tag":         int64(d.DeliveryTag),
		"messaging.ack_mode":             c.mode.String(),
	})
	return ctx, func() { span.End() }
}

func (c *Consumer) observe(operation string, d time.Duration, err error, size int64) {
	observability.Notify(c.observer, observability.OperationContext{
		Component: component,
		Operation: operation,
		Resource:  c.cfg.QueueName,
		Duration:  d,
		Error:     err,
		Size:      size,
		Metadata: map[string]interface{}{
			"ack_mode": c.mode.String(),
		},
	})
}
