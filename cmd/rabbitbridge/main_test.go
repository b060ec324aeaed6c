package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/amqpconnector/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Consumer.QueueName = "in1"
	cfg.Producer.QueueName = "out1"
	return cfg
}

func TestDependencyGraph(t *testing.T) {
	t.Run("with metrics", func(t *testing.T) {
		require.NoError(t, fx.ValidateApp(options(testConfig(), 2)...))
	})

	t.Run("without metrics", func(t *testing.T) {
		cfg := testConfig()
		cfg.MetricsEnabled = false
		require.NoError(t, fx.ValidateApp(options(cfg, 1)...))
	})
}
