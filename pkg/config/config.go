// Package config loads the bridge configuration from a YAML file and the
// environment.
//
// Load starts from Default, overlays the YAML file and then the
// environment. Environment keys are the section prefix followed by the
// field key, for instance CONSUMER_QUEUE_NAME or PRODUCER_QUEUE_DECLARATION_CREATE.
// The broker connection and the logger also honour their short keys such
// as RABBIT_URI and ZAP_LOGGER_LEVEL. Queue and ack settings have no short
// key; they are only read from their prefixed form.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aleph-Alpha/amqpconnector/pkg/consumer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/logger"
	"github.com/Aleph-Alpha/amqpconnector/pkg/metrics"
	"github.com/Aleph-Alpha/amqpconnector/pkg/producer"
	"github.com/Aleph-Alpha/amqpconnector/pkg/tracer"
)

// Config is the complete configuration of the bridge.
type Config struct {
	Consumer consumer.Config `yaml:"consumer" envconfig:"CONSUMER"`
	Producer producer.Config `yaml:"producer" envconfig:"PRODUCER"`
	Logger   logger.Config   `yaml:"logger" envconfig:"LOGGER"`
	Tracer   tracer.Config   `yaml:"tracer" envconfig:"TRACER"`
	Metrics  metrics.Config  `yaml:"metrics" envconfig:"METRICS"`

	// MetricsEnabled starts the Prometheus endpoint.
	MetricsEnabled bool `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Consumer:       consumer.DefaultConfig(),
		Producer:       producer.DefaultConfig(),
		Logger:         logger.DefaultConfig(),
		Tracer:         tracer.Config{ServiceName: "rabbitbridge"},
		Metrics:        metrics.DefaultConfig(),
		MetricsEnabled: true,
	}
}

// Load reads filename over Default and applies environment overrides. An
// empty filename or a missing file yields the defaults plus environment.
// The result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the consumer and producer sections.
func (c *Config) Validate() error {
	if err := c.Consumer.Validate(); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if err := c.Producer.Validate(); err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	return nil
}
