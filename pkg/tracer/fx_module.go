package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Tracer from a Config and a Logger, and shuts it down
// when the application stops.
var FXModule = fx.Module("tracer",
	fx.Provide(
		New,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle flushes and stops the tracer on application stop.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			tracer.logger.Info("shutting down tracer...", nil, nil)
			return tracer.Shutdown(ctx)
		},
	})
}
