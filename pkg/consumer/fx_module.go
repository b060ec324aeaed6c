package consumer

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

// FXModule provides a *Consumer and ties it to the application lifecycle.
// The application supplies a Config and an EventListener.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    rabbit.FXModule,
//	    consumer.FXModule,
//	    fx.Provide(
//	        func() consumer.Config { return cfg.Consumer },
//	        func(p *producer.Producer) consumer.EventListener { return bridge.NewForwarder(p, log) },
//	    ),
//	)
var FXModule = fx.Module("consumer",
	fx.Provide(
		NewConsumerWithDI,
	),
	fx.Invoke(RegisterConsumerLifecycle),
)

// ConsumerParams groups the dependencies of NewConsumerWithDI.
type ConsumerParams struct {
	fx.In

	Config   Config
	Logger   rabbit.Logger          `optional:"true"`
	Provider *rabbit.Provider       `optional:"true"`
	Tracer   observability.Tracer   `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewConsumerWithDI builds a Consumer from injected dependencies.
func NewConsumerWithDI(params ConsumerParams) (*Consumer, error) {
	return New(params.Config, params.Logger,
		WithProvider(params.Provider),
		WithTracer(params.Tracer),
		WithObserver(params.Observer),
	)
}

// RegisterConsumerLifecycle starts consuming on application start and shuts
// the consumer down on stop.
func RegisterConsumerLifecycle(lc fx.Lifecycle, c *Consumer, listener EventListener) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.Start(ctx, listener)
		},
		OnStop: func(ctx context.Context) error {
			return c.ShutdownContext(ctx)
		},
	})
}
