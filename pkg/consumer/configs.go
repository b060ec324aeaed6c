package consumer

import (
	"errors"
	"strings"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

// Config defines the consumer side of the connector.
type Config struct {
	// Connection describes how to reach the broker.
	Connection rabbit.ConnectionConfig `yaml:"connection"`

	// QueueName is the queue to consume from. Required and static.
	QueueName string `yaml:"queue_name" split_words:"true"`

	// ContentMimeType selects how bodies are decoded. Textual types produce
	// string payloads, everything else raw bytes.
	// Default: application/octet-stream
	ContentMimeType string `yaml:"content_mime_type" split_words:"true"`

	// AutoAck makes the broker settle messages on delivery. When false each
	// message is acknowledged once the pipeline invokes its completion handle.
	// Default: true
	AutoAck bool `yaml:"auto_ack" split_words:"true"`

	// ConsumerTag identifies the consumer on the broker. Empty lets the
	// broker generate one.
	ConsumerTag string `yaml:"consumer_tag" split_words:"true"`

	// PrefetchCount limits unacknowledged deliveries in flight. Zero leaves
	// the broker default in place.
	PrefetchCount int `yaml:"prefetch_count" split_words:"true"`

	// QueueDeclaration optionally declares the queue before consuming.
	QueueDeclaration rabbit.QueueDeclaration `yaml:"queue_declaration" split_words:"true"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		ContentMimeType: string(message.DefaultMimeType),
		AutoAck:         true,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.QueueName) == "" {
		return &rabbit.ConfigurationError{Field: "queueName", Err: errors.New("queue name must not be empty")}
	}
	if c.PrefetchCount < 0 {
		return &rabbit.ConfigurationError{Field: "prefetchCount", Err: errors.New("prefetch count must not be negative")}
	}
	if _, err := c.Connection.Endpoint(); err != nil {
		return err
	}
	return nil
}

// MimeType returns the parsed content type, defaulting when blank.
func (c Config) MimeType() message.MimeType {
	return message.ParseMimeType(c.ContentMimeType)
}

// Mode returns the acknowledgment mode selected by AutoAck.
func (c Config) Mode() AckMode {
	if c.AutoAck {
		return AutoAck
	}
	return ExplicitAck
}
