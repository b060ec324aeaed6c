package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

const component = "consumer"

var (
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("consumer already started")

	// ErrNilListener is returned when Start receives no listener.
	ErrNilListener = errors.New("listener must not be nil")

	// ErrStopped is returned by Start after Shutdown.
	ErrStopped = errors.New("consumer stopped")
)

// Consumer reads messages from one queue and hands them to an EventListener.
// Each Consumer owns its connection and channel.
type Consumer struct {
	cfg      Config
	mode     AckMode
	mimeType message.MimeType
	logger   rabbit.Logger

	provider    *rabbit.Provider
	sessionOpts []rabbit.SessionOption
	tracer      observability.Tracer
	observer    observability.Observer
	stateHook   StateHook

	mu       sync.Mutex
	started  bool
	stopped  bool
	session  *rabbit.Session
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	drained  chan struct{}
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithProvider sets the connection provider. By default the consumer builds
// its own.
func WithProvider(p *rabbit.Provider) Option {
	return func(c *Consumer) {
		if p != nil {
			c.provider = p
		}
	}
}

// WithSessionOptions forwards options to the underlying rabbit.Session.
func WithSessionOptions(opts ...rabbit.SessionOption) Option {
	return func(c *Consumer) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithTracer enables a span per delivery. String headers of the delivery are
// used as propagation carrier.
func WithTracer(t observability.Tracer) Option {
	return func(c *Consumer) { c.tracer = t }
}

// WithObserver reports consume and ack operations.
func WithObserver(o observability.Observer) Option {
	return func(c *Consumer) { c.observer = o }
}

// WithStateHook observes delivery state transitions.
func WithStateHook(h StateHook) Option {
	return func(c *Consumer) { c.stateHook = h }
}

// New validates cfg and returns an idle consumer.
func New(cfg Config, logger rabbit.Logger, opts ...Option) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		cfg:      cfg,
		mode:     cfg.Mode(),
		mimeType: cfg.MimeType(),
		logger:   rabbit.OrNop(logger),
		drained:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.provider == nil {
		c.provider = rabbit.NewProvider(c.logger, rabbit.WithObserver(c.observer), rabbit.WithComponent(component))
	}
	return c, nil
}

// Mode returns the acknowledgment mode.
func (c *Consumer) Mode() AckMode {
	return c.mode
}

// Start connects, opens the channel, declares the queue when requested and
// registers the consumer. Deliveries are then dispatched to listener on a
// background goroutine until Shutdown. Any failure here is returned and
// leaves nothing open.
func (c *Consumer) Start(ctx context.Context, listener EventListener) error {
	if listener == nil {
		return &rabbit.ConfigurationError{Field: "listener", Err: ErrNilListener}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}

	endpoint, err := c.cfg.Connection.Endpoint()
	if err != nil {
		return err
	}

	session := rabbit.NewSession(c.provider, endpoint, c.logger, c.sessionOpts...)
	ch, err := session.Open(ctx)
	if err != nil {
		return err
	}

	deliveries, err := c.setup(ch)
	if err != nil {
		session.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.session = session
	c.cancel = cancel
	c.started = true

	c.logger.Info("consumer started", nil, map[string]interface{}{
		"queue":    c.cfg.QueueName,
		"ack_mode": c.mode.String(),
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx, session, ch, deliveries, listener)
	}()
	return nil
}

// Shutdown stops dispatching and releases the channel and connection,
// ignoring close errors. In-flight completion handles invoked afterwards
// fail to acknowledge and are logged. Shutdown waits for the listener to
// return; see ShutdownContext for a bounded wait. It is idempotent and must
// not be called from inside OnEvent.
func (c *Consumer) Shutdown() {
	_ = c.ShutdownContext(context.Background())
}

// ShutdownContext is Shutdown with the wait for a running OnEvent bounded by
// ctx. The channel and connection are closed before it waits, so on timeout
// only the listener goroutine is left behind and ctx.Err() is returned.
func (c *Consumer) ShutdownContext(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		cancel, session := c.cancel, c.session
		c.mu.Unlock()

		c.logger.Info("consumer is shutting down", nil, map[string]interface{}{
			"queue": c.cfg.QueueName,
		})

		if cancel != nil {
			cancel()
		}
		if session != nil {
			session.Close()
		}
		go func() {
			c.wg.Wait()
			close(c.drained)
		}()
	})

	select {
	case <-c.drained:
		return nil
	case <-ctx.Done():
		c.logger.Warn("consumer shutdown timed out waiting for the listener", ctx.Err(), map[string]interface{}{
			"queue": c.cfg.QueueName,
		})
		return ctx.Err()
	}
}
