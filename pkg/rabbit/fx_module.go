package rabbit

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
)

// FXModule provides a shared *Provider to the consumer and producer modules.
//
// Usage:
//
//	app := fx.New(
//	    rabbit.FXModule,
//	    consumer.FXModule,
//	    producer.FXModule,
//	)
var FXModule = fx.Module("rabbit",
	fx.Provide(
		NewProviderWithDI,
	),
)

// ProviderParams groups the dependencies of NewProviderWithDI.
type ProviderParams struct {
	fx.In

	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewProviderWithDI builds a Provider from injected dependencies. A missing
// logger discards output; a missing observer disables operation reporting.
func NewProviderWithDI(params ProviderParams) *Provider {
	return NewProvider(params.Logger, WithObserver(params.Observer))
}
