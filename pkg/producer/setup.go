package producer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Aleph-Alpha/amqpconnector/pkg/converter"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/script"
)

const component = "producer"

var (
	// ErrNotInitialized is returned when publishing before Initialize.
	ErrNotInitialized = errors.New("producer not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("producer already initialized")

	// ErrDisposed is returned once Dispose has been called.
	ErrDisposed = errors.New("producer disposed")
)

// Producer publishes pipeline messages to the broker. A Producer is safe for
// concurrent use; publishes are serialized on its single channel.
type Producer struct {
	cfg    Config
	logger rabbit.Logger

	provider      *rabbit.Provider
	sessionOpts   []rabbit.SessionOption
	evaluator     script.Evaluator
	converter     converter.Converter
	tracer        observability.Tracer
	observer      observability.Observer
	correlationID func() string

	// publishMu serializes every write on the channel.
	publishMu sync.Mutex

	stateMu     sync.RWMutex
	initialized bool
	disposed    bool
	session     *rabbit.Session
	cancelWatch context.CancelFunc

	wg          sync.WaitGroup
	disposeOnce sync.Once
}

// Option customizes a Producer.
type Option func(*Producer)

// WithProvider sets the connection provider. By default the producer builds
// its own.
func WithProvider(p *rabbit.Provider) Option {
	return func(pr *Producer) {
		if p != nil {
			pr.provider = p
		}
	}
}

// WithSessionOptions forwards options to the underlying rabbit.Session.
func WithSessionOptions(opts ...rabbit.SessionOption) Option {
	return func(p *Producer) { p.sessionOpts = append(p.sessionOpts, opts...) }
}

// WithEvaluator sets the evaluator for expression based exchange and queue
// names. Defaults to script.TemplateEvaluator.
func WithEvaluator(e script.Evaluator) Option {
	return func(p *Producer) {
		if e != nil {
			p.evaluator = e
		}
	}
}

// WithConverter sets the payload converter. Defaults to converter.Default.
func WithConverter(c converter.Converter) Option {
	return func(p *Producer) {
		if c != nil {
			p.converter = c
		}
	}
}

// WithTracer wraps every publish in a span.
func WithTracer(t observability.Tracer) Option {
	return func(p *Producer) { p.tracer = t }
}

// WithObserver reports declare and publish operations.
func WithObserver(o observability.Observer) Option {
	return func(p *Producer) { p.observer = o }
}

// WithCorrelationIDs replaces the correlation id generator, a random UUID
// by default.
func WithCorrelationIDs(gen func() string) Option {
	return func(p *Producer) {
		if gen != nil {
			p.correlationID = gen
		}
	}
}

// New validates cfg and returns an uninitialized producer.
func New(cfg Config, logger rabbit.Logger, opts ...Option) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Producer{
		cfg:           cfg,
		logger:        rabbit.OrNop(logger),
		converter:     converter.Default,
		correlationID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.evaluator == nil {
		p.evaluator = script.NewTemplateEvaluator(nil)
	}
	if p.provider == nil {
		p.provider = rabbit.NewProvider(p.logger, rabbit.WithObserver(p.observer), rabbit.WithComponent(component))
	}
	return p, nil
}

// Initialize connects, opens the channel and declares the queue when the
// queue name is static and declaration is requested. Any failure is returned
// and leaves nothing open.
func (p *Producer) Initialize(ctx context.Context) error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.disposed {
		return ErrDisposed
	}
	if p.initialized {
		return ErrAlreadyInitialized
	}

	endpoint, err := p.cfg.Connection.Endpoint()
	if err != nil {
		return err
	}

	session := rabbit.NewSession(p.provider, endpoint, p.logger, p.sessionOpts...)
	ch, err := session.Open(ctx)
	if err != nil {
		return err
	}
	if err := p.setup(ch); err != nil {
		session.Close()
		return err
	}

	p.session = session
	p.initialized = true

	if endpoint.AutomaticRecovery {
		watchCtx, cancel := context.WithCancel(context.Background())
		p.cancelWatch = cancel
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.watch(watchCtx, session)
		}()
	}

	p.logger.Info("producer initialized", nil, map[string]interface{}{
		"exchange": p.cfg.ExchangeName.String(),
		"queue":    p.cfg.QueueName.String(),
	})
	return nil
}

// Dispose releases the channel and connection, ignoring close errors.
// Publishes still in flight may fail. Dispose is idempotent.
func (p *Producer) Dispose() {
	p.disposeOnce.Do(func() {
		p.stateMu.Lock()
		p.disposed = true
		session, cancel := p.session, p.cancelWatch
		p.stateMu.Unlock()

		p.logger.Info("producer is shutting down", nil, map[string]interface{}{
			"queue": p.cfg.QueueName.String(),
		})

		if cancel != nil {
			cancel()
		}
		if session != nil {
			session.Close()
		}
		p.wg.Wait()
	})
}
