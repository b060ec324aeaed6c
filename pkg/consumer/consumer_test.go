package consumer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/amqpconnector/pkg/consumer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit/rabbittest"
)

type event struct {
	msg  *message.Message
	done consumer.CompletionHandle
}

type recordingListener struct {
	events chan event
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(chan event, 64)}
}

func (l *recordingListener) OnEvent(_ context.Context, msg *message.Message, done consumer.CompletionHandle) {
	l.events <- event{msg: msg, done: done}
}

func (l *recordingListener) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-l.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return event{}
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states map[uint64][]consumer.DeliveryState
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{states: make(map[uint64][]consumer.DeliveryState)}
}

func (r *stateRecorder) hook(tag uint64, s consumer.DeliveryState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[tag] = append(r.states[tag], s)
}

func (r *stateRecorder) of(tag uint64) []consumer.DeliveryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]consumer.DeliveryState(nil), r.states[tag]...)
}

func newLogger(t *testing.T, expect func(m *rabbit.MockLogger)) *rabbit.MockLogger {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := rabbit.NewMockLogger(ctrl)
	if expect != nil {
		expect(m)
	}
	m.EXPECT().Info(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().Debug(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().Warn(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.EXPECT().Error(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return m
}

func baseConfig() consumer.Config {
	cfg := consumer.DefaultConfig()
	cfg.QueueName = "in1"
	return cfg
}

func startConsumer(t *testing.T, cfg consumer.Config, listener consumer.EventListener, log rabbit.Logger, broker *rabbittest.Broker, opts ...consumer.Option) *consumer.Consumer {
	t.Helper()
	provider := rabbit.NewProvider(log, rabbit.WithDialer(broker.Dial))
	opts = append(opts,
		consumer.WithProvider(provider),
		consumer.WithSessionOptions(rabbit.WithBackOff(func() backoff.BackOff {
			return backoff.NewConstantBackOff(5 * time.Millisecond)
		})),
	)
	c, err := consumer.New(cfg, log, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background(), listener))
	t.Cleanup(c.Shutdown)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := consumer.New(consumer.DefaultConfig(), nil)
	var cfgErr *rabbit.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "queueName", cfgErr.Field)
}

func TestDefaultConfig(t *testing.T) {
	cfg := consumer.DefaultConfig()
	assert.True(t, cfg.AutoAck)
	assert.Equal(t, consumer.AutoAck, cfg.Mode())
	assert.Equal(t, message.ApplicationOctetStream, cfg.MimeType())
	assert.False(t, cfg.QueueDeclaration.Create)
}

func TestAutoAck(t *testing.T) {
	broker := &rabbittest.Broker{}
	listener := newRecordingListener()
	states := newStateRecorder()
	cfg := baseConfig()
	cfg.ContentMimeType = "text/plain"

	startConsumer(t, cfg, listener, newLogger(t, nil), broker, consumer.WithStateHook(states.hook))

	ch := broker.LastChannel()
	consumes := ch.Consumes()
	require.Len(t, consumes, 1)
	assert.Equal(t, "in1", consumes[0].Queue)
	assert.True(t, consumes[0].AutoAck)

	for tag := uint64(1); tag <= 3; tag++ {
		require.True(t, ch.Deliver(amqp.Delivery{DeliveryTag: tag, RoutingKey: "in1", Body: []byte("hello")}))
	}

	for tag := uint64(1); tag <= 3; tag++ {
		ev := listener.next(t)
		assert.Equal(t, tag, ev.msg.Attributes.Envelope.DeliveryTag)
		assert.Equal(t, "hello", ev.msg.Payload())
		require.NotNil(t, ev.done)
		ev.done(context.Background(), ev.msg)
	}

	assert.Empty(t, ch.Acks())
	assert.Equal(t, []consumer.DeliveryState{consumer.Delivered, consumer.Acked}, states.of(1))
}

func TestExplicitAck(t *testing.T) {
	broker := &rabbittest.Broker{}
	listener := newRecordingListener()
	states := newStateRecorder()
	cfg := baseConfig()
	cfg.AutoAck = false

	startConsumer(t, cfg, listener, newLogger(t, nil), broker, consumer.WithStateHook(states.hook))
	ch := broker.LastChannel()
	assert.False(t, ch.Consumes()[0].AutoAck)

	for tag := uint64(1); tag <= 3; tag++ {
		require.True(t, ch.Deliver(amqp.Delivery{DeliveryTag: tag, Body: []byte{byte(tag)}}))
	}
	events := []event{listener.next(t), listener.next(t), listener.next(t)}

	t.Run("no ack before completion", func(t *testing.T) {
		assert.Empty(t, ch.Acks())
		assert.Equal(t, []consumer.DeliveryState{consumer.Delivered}, states.of(2))
	})

	t.Run("completion acks exactly once from any goroutine", func(t *testing.T) {
		var wg sync.WaitGroup
		for _, idx := range []int{2, 0} {
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func(ev event) {
					defer wg.Done()
					ev.done(context.Background(), ev.msg)
				}(events[idx])
			}
		}
		wg.Wait()

		assert.ElementsMatch(t, []uint64{3, 1}, ch.Acks())
		assert.Equal(t, []consumer.DeliveryState{consumer.Delivered, consumer.Acked}, states.of(1))
		assert.Equal(t, []consumer.DeliveryState{consumer.Delivered, consumer.Acked}, states.of(3))
	})

	t.Run("uncompleted delivery stays unacked", func(t *testing.T) {
		assert.NotContains(t, ch.Acks(), uint64(2))
		assert.Equal(t, []consumer.DeliveryState{consumer.Delivered}, states.of(2))
	})
}

func TestExplicitAckFailureIsLoggedNotPropagated(t *testing.T) {
	broker := &rabbittest.Broker{}
	listener := newRecordingListener()
	states := newStateRecorder()
	cfg := baseConfig()
	cfg.AutoAck = false

	log := newLogger(t, func(m *rabbit.MockLogger) {
		m.EXPECT().Error("An error occurred while sending ack for tag=[5]", gomock.Any(), gomock.Any()).
			Do(func(_ string, err error, _ ...map[string]interface{}) {
				var ackErr *rabbit.AckError
				assert.ErrorAs(t, err, &ackErr)
				assert.Equal(t, uint64(5), ackErr.DeliveryTag)
			}).Times(1)
	})

	startConsumer(t, cfg, listener, log, broker, consumer.WithStateHook(states.hook))
	ch := broker.LastChannel()
	ch.AckErr = errors.New("channel reset")

	require.True(t, ch.Deliver(amqp.Delivery{DeliveryTag: 5}))
	ev := listener.next(t)

	assert.NotPanics(t, func() { ev.done(context.Background(), ev.msg) })
	assert.Equal(t, []consumer.DeliveryState{consumer.Delivered, consumer.AckFailed}, states.of(5))
	assert.Empty(t, ch.Acks())
}

func TestStartDeclaresQueueWhenRequested(t *testing.T) {
	t.Run("create true", func(t *testing.T) {
		broker := &rabbittest.Broker{}
		cfg := baseConfig()
		cfg.QueueDeclaration = rabbit.QueueDeclaration{Create: true, Durable: true, AutoDelete: true}

		startConsumer(t, cfg, newRecordingListener(), newLogger(t, nil), broker)

		assert.Equal(t, []rabbittest.QueueDeclareCall{{Name: "in1", Durable: true, AutoDelete: true}}, broker.LastChannel().Declares())
	})

	t.Run("create false", func(t *testing.T) {
		broker := &rabbittest.Broker{}
		cfg := baseConfig()
		cfg.QueueDeclaration = rabbit.QueueDeclaration{Durable: true}

		startConsumer(t, cfg, newRecordingListener(), newLogger(t, nil), broker)

		assert.Empty(t, broker.LastChannel().Declares())
	})
}

func TestStartFailures(t *testing.T) {
	t.Run("connection error", func(t *testing.T) {
		broker := &rabbittest.Broker{DialErr: errors.New("dial tcp: connection refused")}
		log := newLogger(t, nil)
		c, err := consumer.New(baseConfig(), log, consumer.WithProvider(rabbit.NewProvider(log, rabbit.WithDialer(broker.Dial))))
		require.NoError(t, err)

		err = c.Start(context.Background(), newRecordingListener())
		var connErr *rabbit.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Len(t, broker.Dials(), 1)
	})

	t.Run("declaration error closes channel and connection", func(t *testing.T) {
		broker := &rabbittest.Broker{NewConnection: func() *rabbittest.Connection {
			return &rabbittest.Connection{NewChannel: func() *rabbittest.Channel {
				ch := rabbittest.NewChannel()
				ch.DeclareErr = &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg"}
				return ch
			}}
		}}
		log := newLogger(t, nil)
		cfg := baseConfig()
		cfg.QueueDeclaration.Create = true

		c, err := consumer.New(cfg, log, consumer.WithProvider(rabbit.NewProvider(log, rabbit.WithDialer(broker.Dial))))
		require.NoError(t, err)

		err = c.Start(context.Background(), newRecordingListener())
		var declErr *rabbit.QueueDeclarationError
		require.ErrorAs(t, err, &declErr)
		assert.ErrorIs(t, err, rabbit.ErrPreconditionFailed)
		assert.True(t, broker.LastChannel().IsClosed())
		assert.True(t, broker.LastConnection().IsClosed())
	})

	t.Run("consume error", func(t *testing.T) {
		broker := &rabbittest.Broker{NewConnection: func() *rabbittest.Connection {
			return &rabbittest.Connection{NewChannel: func() *rabbittest.Channel {
				ch := rabbittest.NewChannel()
				ch.ConsumeErr = &amqp.Error{Code: amqp.NotFound, Reason: "no queue 'in1'"}
				return ch
			}}
		}}
		log := newLogger(t, nil)
		c, err := consumer.New(baseConfig(), log, consumer.WithProvider(rabbit.NewProvider(log, rabbit.WithDialer(broker.Dial))))
		require.NoError(t, err)

		err = c.Start(context.Background(), newRecordingListener())
		var consumeErr *rabbit.ConsumeError
		require.ErrorAs(t, err, &consumeErr)
		assert.ErrorIs(t, err, rabbit.ErrNotFound)
	})

	t.Run("nil listener", func(t *testing.T) {
		c, err := consumer.New(baseConfig(), nil)
		require.NoError(t, err)
		assert.ErrorIs(t, c.Start(context.Background(), nil), consumer.ErrNilListener)
	})
}

func TestLifecycle(t *testing.T) {
	broker := &rabbittest.Broker{}
	c := startConsumer(t, baseConfig(), newRecordingListener(), newLogger(t, nil), broker)

	assert.ErrorIs(t, c.Start(context.Background(), newRecordingListener()), consumer.ErrAlreadyStarted)

	c.Shutdown()
	c.Shutdown()

	assert.True(t, broker.LastChannel().IsClosed())
	assert.True(t, broker.LastConnection().IsClosed())
	assert.Equal(t, 1, broker.LastChannel().CloseCalls())
	assert.Equal(t, 1, broker.LastConnection().CloseCalls())
	assert.ErrorIs(t, c.Start(context.Background(), newRecordingListener()), consumer.ErrStopped)
}

func TestShutdownContextBoundsListenerWait(t *testing.T) {
	broker := &rabbittest.Broker{}
	entered := make(chan struct{})
	release := make(chan struct{})
	stuck := consumer.ListenerFunc(func(context.Context, *message.Message, consumer.CompletionHandle) {
		close(entered)
		<-release
	})

	c := startConsumer(t, baseConfig(), stuck, newLogger(t, nil), broker)
	require.True(t, broker.LastChannel().Deliver(amqp.Delivery{DeliveryTag: 1}))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("listener not invoked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.ShutdownContext(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, broker.LastChannel().IsClosed())
	assert.True(t, broker.LastConnection().IsClosed())

	close(release)
	require.NoError(t, c.ShutdownContext(context.Background()))
	assert.Equal(t, 1, broker.LastChannel().CloseCalls())
}

func TestPrefetch(t *testing.T) {
	broker := &rabbittest.Broker{}
	cfg := baseConfig()
	cfg.PrefetchCount = 10
	cfg.ConsumerTag = "bridge-1"

	startConsumer(t, cfg, newRecordingListener(), newLogger(t, nil), broker)

	ch := broker.LastChannel()
	assert.Equal(t, []int{10}, ch.QosCalls())
	assert.Equal(t, "bridge-1", ch.Consumes()[0].Consumer)
}

func TestAutomaticRecovery(t *testing.T) {
	broker := &rabbittest.Broker{}
	listener := newRecordingListener()
	cfg := baseConfig()
	cfg.AutoAck = false
	cfg.Connection.AutomaticRecovery = true

	var mu sync.Mutex
	var recoveries []observability.OperationContext
	obs := observability.ObserverFunc(func(ctx observability.OperationContext) {
		if ctx.Operation != observability.OperationRecover {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		recoveries = append(recoveries, ctx)
	})

	startConsumer(t, cfg, listener, newLogger(t, nil), broker, consumer.WithObserver(obs))
	first := broker.LastChannel()

	require.True(t, first.Deliver(amqp.Delivery{DeliveryTag: 1}))
	stale := listener.next(t)

	broker.LastConnection().Drop(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})

	require.Eventually(t, func() bool {
		ch := broker.LastChannel()
		return ch != first && ch != nil && len(ch.Consumes()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	second := broker.LastChannel()
	require.True(t, second.Deliver(amqp.Delivery{DeliveryTag: 1}))
	fresh := listener.next(t)

	stale.done(context.Background(), stale.msg)
	fresh.done(context.Background(), fresh.msg)

	assert.Empty(t, first.Acks())
	assert.Equal(t, []uint64{1}, second.Acks())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, recoveries, 1)
	assert.Equal(t, "in1", recoveries[0].Resource)
	assert.Equal(t, "explicit", recoveries[0].Metadata["ack_mode"])
	assert.NoError(t, recoveries[0].Error)
}

func TestConnectionLossWithoutRecoveryStopsDispatch(t *testing.T) {
	broker := &rabbittest.Broker{}
	startConsumer(t, baseConfig(), newRecordingListener(), newLogger(t, nil), broker)

	broker.LastConnection().Drop(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, broker.Dials(), 1)
}

func TestObserverAndTracer(t *testing.T) {
	broker := &rabbittest.Broker{}
	listener := newRecordingListener()

	var mu sync.Mutex
	var ops []observability.OperationContext
	obs := observability.ObserverFunc(func(ctx observability.OperationContext) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, ctx)
	})
	tr := &fakeTracer{}

	cfg := baseConfig()
	cfg.AutoAck = false
	startConsumer(t, cfg, listener, newLogger(t, nil), broker, consumer.WithObserver(obs), consumer.WithTracer(tr))

	require.True(t, broker.LastChannel().Deliver(amqp.Delivery{
		DeliveryTag: 8,
		Body:        []byte("four"),
		Headers:     amqp.Table{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	}))
	ev := listener.next(t)
	ev.done(context.Background(), ev.msg)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ops, 2)
	assert.Equal(t, observability.OperationConsume, ops[0].Operation)
	assert.Equal(t, "in1", ops[0].Resource)
	assert.Equal(t, int64(4), ops[0].Size)
	assert.Equal(t, observability.OperationAck, ops[1].Operation)
	assert.NoError(t, ops[1].Error)

	assert.Equal(t, []string{"rabbit.consume"}, tr.spans())
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", tr.lastCarrier()["traceparent"])
}

type fakeTracer struct {
	mu       sync.Mutex
	names    []string
	carriers []map[string]string
}

func (f *fakeTracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	return noop.NewTracerProvider().Tracer("test").Start(ctx, name)
}

func (f *fakeTracer) RecordErrorOnSpan(trace.Span, error) {}

func (f *fakeTracer) SetAttributes(trace.Span, map[string]interface{}) {}

func (f *fakeTracer) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	f.mu.Lock()
	f.carriers = append(f.carriers, carrier)
	f.mu.Unlock()
	return ctx
}

func (f *fakeTracer) spans() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

func (f *fakeTracer) lastCarrier() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.carriers) == 0 {
		return nil
	}
	return f.carriers[len(f.carriers)-1]
}
