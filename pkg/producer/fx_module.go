package producer

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/amqpconnector/pkg/converter"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/script"
)

// FXModule provides a *Producer that is initialized on application start
// and disposed on stop. The application supplies a Config.
var FXModule = fx.Module("producer",
	fx.Provide(
		NewProducerWithDI,
	),
	fx.Invoke(RegisterProducerLifecycle),
)

// ProducerParams groups the dependencies of NewProducerWithDI.
type ProducerParams struct {
	fx.In

	Config    Config
	Logger    rabbit.Logger          `optional:"true"`
	Provider  *rabbit.Provider       `optional:"true"`
	Evaluator script.Evaluator       `optional:"true"`
	Converter converter.Converter    `optional:"true"`
	Tracer    observability.Tracer   `optional:"true"`
	Observer  observability.Observer `optional:"true"`
}

// NewProducerWithDI builds a Producer from injected dependencies.
func NewProducerWithDI(params ProducerParams) (*Producer, error) {
	return New(params.Config, params.Logger,
		WithProvider(params.Provider),
		WithEvaluator(params.Evaluator),
		WithConverter(params.Converter),
		WithTracer(params.Tracer),
		WithObserver(params.Observer),
	)
}

// RegisterProducerLifecycle initializes the producer on start and disposes
// it on stop.
func RegisterProducerLifecycle(lc fx.Lifecycle, p *Producer) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Initialize(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Dispose()
			return nil
		},
	})
}
