package producer

import (
	"errors"

	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
	"github.com/Aleph-Alpha/amqpconnector/pkg/script"
)

// Config defines the producer side of the connector.
type Config struct {
	// Connection describes how to reach the broker.
	Connection rabbit.ConnectionConfig `yaml:"connection"`

	// ExchangeName is the exchange to publish to. It may be an expression;
	// an empty or unresolved value publishes to the default exchange.
	ExchangeName script.DynamicString `yaml:"exchange_name" split_words:"true"`

	// QueueName is used as routing key. It may be an expression, in which
	// case it is resolved per message and must yield a non-empty value.
	QueueName script.DynamicString `yaml:"queue_name" split_words:"true"`

	// QueueDeclaration declares QueueName on initialize. It is ignored when
	// QueueName is an expression.
	QueueDeclaration rabbit.QueueDeclaration `yaml:"queue_declaration" split_words:"true"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.QueueName.IsBlank() {
		return &rabbit.ConfigurationError{Field: "queueName", Err: errors.New("queue name must not be empty")}
	}
	if _, err := c.Connection.Endpoint(); err != nil {
		return err
	}
	return nil
}

// DeclaresQueue reports whether Initialize issues a queue declaration.
func (c Config) DeclaresQueue() bool {
	return c.QueueDeclaration.Create && !c.QueueName.IsScript()
}
