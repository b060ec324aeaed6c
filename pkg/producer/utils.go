package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/script"
)

// Apply publishes the payload of msg and returns msg unchanged. Exchange and
// queue names are resolved against msg first. An unresolvable queue name is
// reported as a *rabbit.ConfigurationError, a failed publish as a
// *rabbit.PublishError.
func (p *Producer) Apply(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if !p.ready() {
		return nil, &rabbit.PublishError{
			Exchange: p.cfg.ExchangeName.String(),
			Queue:    p.cfg.QueueName.String(),
			Err:      ErrNotInitialized,
		}
	}

	queue, exchange, err := p.resolve(ctx, msg)
	if err != nil {
		p.logger.Error("failed to resolve publish destination", err, map[string]interface{}{
			"exchange": p.cfg.ExchangeName.String(),
			"queue":    p.cfg.QueueName.String(),
		})
		return nil, err
	}

	if err := p.Publish(ctx, exchange, queue, msg.Payload()); err != nil {
		return nil, err
	}
	return msg, nil
}

// Publish converts payload to bytes and publishes it with a fresh
// correlation id as its only property. There is no retry.
func (p *Producer) Publish(ctx context.Context, exchange, queue string, payload interface{}) error {
	start := time.Now()

	session, err := p.current()
	if err != nil {
		return &rabbit.PublishError{Exchange: exchange, Queue: queue, Err: err}
	}

	body, err := p.converter.ToBytes(payload)
	if err != nil {
		return &rabbit.PublishError{Exchange: exchange, Queue: queue, Err: fmt.Errorf("convert payload: %w", err)}
	}

	ctx, finish := p.startSpan(ctx, exchange, queue, len(body))

	publishing := amqp.Publishing{
		CorrelationId: p.correlationID(),
		Body:          body,
	}

	p.publishMu.Lock()
	ch := session.Channel()
	if ch == nil {
		err = rabbit.ErrClosed
	} else {
		err = ch.PublishWithContext(ctx,
			exchange,
			queue,
			false, // mandatory
			false, // immediate
			publishing,
		)
	}
	p.publishMu.Unlock()

	p.observe(observability.OperationPublish, exchange, queue, time.Since(start), err, int64(len(body)))

	if err != nil {
		finish(err)
		publishErr := &rabbit.PublishError{Exchange: exchange, Queue: queue, Err: err}
		p.logger.Error(fmt.Sprintf(rabbit.MsgPublishMessage, queue), err, map[string]interface{}{
			"exchange": exchange,
			"queue":    queue,
		})
		return publishErr
	}
	finish(nil)

	p.logger.Debug("message published to rabbit", nil, map[string]interface{}{
		"exchange":       exchange,
		"queue":          queue,
		"correlation_id": publishing.CorrelationId,
		"size":           len(body),
	})
	return nil
}

// resolve evaluates the destination of msg. The exchange falls back to the
// default exchange when it does not resolve.
func (p *Producer) resolve(ctx context.Context, msg *message.Message) (string, string, error) {
	scope := script.Scope{Message: msg}

	queue, err := p.evaluator.Evaluate(ctx, p.cfg.QueueName, scope)
	if err == nil && queue == "" {
		err = script.ErrUnresolved
	}
	if err != nil {
		return "", "", &rabbit.ConfigurationError{
			Field: "queueName",
			Err:   fmt.Errorf(rabbit.MsgEmptyQueue+": %w", p.cfg.QueueName, err),
		}
	}

	if p.cfg.ExchangeName.IsBlank() {
		return queue, "", nil
	}
	exchange, err := p.evaluator.Evaluate(ctx, p.cfg.ExchangeName, scope)
	if err != nil {
		if !errors.Is(err, script.ErrUnresolved) {
			return "", "", &rabbit.ConfigurationError{Field: "exchangeName", Err: err}
		}
		exchange = ""
	}
	return queue, exchange, nil
}

// setup declares the configured queue on ch when it is static and creation
// is requested.
func (p *Producer) setup(ch rabbit.Channel) error {
	name := p.cfg.QueueName.String()
	start := time.Now()
	declared, err := rabbit.DeclareIfRequested(ch, name, p.cfg.QueueDeclaration, !p.cfg.QueueName.IsScript())
	if declared {
		p.observe(observability.OperationDeclare, name, "", time.Since(start), err, 0)
	}
	if err != nil {
		p.logger.Error("failed to declare queue", err, map[string]interface{}{
			"queue": name,
		})
		return err
	}
	return nil
}

// watch keeps the channel alive until ctx ends.
func (p *Producer) watch(ctx context.Context, session *rabbit.Session) {
	err := session.Watch(ctx, p.setup)
	if err != nil && ctx.Err() == nil {
		p.logger.Error("producer recovery stopped", err, map[string]interface{}{
			"queue": p.cfg.QueueName.String(),
		})
	}
}

func (p *Producer) ready() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.initialized && !p.disposed
}

func (p *Producer) current() (*rabbit.Session, error) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	switch {
	case p.disposed:
		return nil, ErrDisposed
	case !p.initialized:
		return nil, ErrNotInitialized
	}
	return p.session, nil
}

func (p *Producer) startSpan(ctx context.Context, exchange, queue string, size int) (context.Context, func(error)) {
	if p.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := p.tracer.StartSpan(ctx, "rabbit.publish")
	p.tracer.SetAttributes(span, map[string]interface{}{
		"messaging.system":               "rabbitmq",
		"messaging.destination.name":     exchange,
		"messaging.rabbitmq.routing_key": queue,
		"messaging.message.body.size":    size,
	})
	return ctx, func(err error) {
		if err != nil {
			p.tracer.RecordErrorOnSpan(span, err)
		}
		span.End()
	}
}

func (p *Producer) observe(operation, exchange, queue string, d time.Duration, err error, size int64) {
	observability.Notify(p.observer, observability.OperationContext{
		Component:   component,
		Operation:   operation,
		Resource:    exchange,
		SubResource: queue,
		Duration:    d,
		Error:       err,
		Size:        size,
	})
}
