// Command rabbitbridge consumes messages from one queue and republishes them
// through a producer, acknowledging each delivery after its publish
// succeeded.
//
//	rabbitbridge -config /etc/rabbitbridge/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Aleph-Alpha/amqpconnector/pkg/bridge"
	"github.com/Aleph-Alpha/amqpconnector/pkg/config"
	"github.com/Aleph-Alpha/amqpconnector/pkg/consumer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/logger"
	"github.com/Aleph-Alpha/amqpconnector/pkg/metrics"
	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
	"github.com/Aleph-Alpha/amqpconnector/pkg/producer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/tracer"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	concurrency := flag.Int("concurrency", 1, "Number of concurrent publishes")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	fx.New(options(cfg, *concurrency)...).Run()
}

func options(cfg *config.Config, concurrency int) []fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg.Logger, cfg.Tracer, cfg.Metrics, cfg.Consumer, cfg.Producer),
		fx.WithLogger(func(l *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
		logger.FXModule,
		tracer.FXModule,
		fx.Provide(
			func(l *logger.Logger) rabbit.Logger { return l },
			func(l *logger.Logger) tracer.Logger { return l },
			func(t *tracer.Tracer) observability.Tracer { return t },
			func() forwarderSettings { return forwarderSettings{concurrency: concurrency} },
			newForwarder,
			func(f *bridge.Forwarder) consumer.EventListener { return f },
		),
		rabbit.FXModule,
		producer.FXModule,
		consumer.FXModule,
		fx.Invoke(registerForwarderLifecycle),
	}

	if cfg.MetricsEnabled {
		opts = append(opts,
			fx.Provide(
				func(l *logger.Logger) metrics.Logger { return l },
				func(m *metrics.Metrics) observability.Observer { return m },
			),
			metrics.FXModule,
		)
	}
	return opts
}

type forwarderSettings struct {
	concurrency int
}

type forwarderParams struct {
	fx.In

	Settings  forwarderSettings
	Publisher *producer.Producer
	Logger    rabbit.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

func newForwarder(p forwarderParams) *bridge.Forwarder {
	opts := []bridge.Option{bridge.WithConcurrency(p.Settings.concurrency)}
	if p.Metrics != nil {
		opts = append(opts, bridge.WithForwardCounter(
			p.Metrics.CreateCounter("bridge_forwarded_total", "Messages forwarded by the bridge", []string{"status"}),
		))
	}
	return bridge.NewForwarder(p.Publisher, p.Logger, opts...)
}

// registerForwarderLifecycle runs after the consumer module registered its
// hooks, so on stop the forwarder drains before the consumer closes its
// channel.
func registerForwarderLifecycle(lc fx.Lifecycle, f *bridge.Forwarder) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return f.CloseContext(ctx)
		},
	})
}
