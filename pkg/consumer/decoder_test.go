package consumer

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
)

func TestDecodeTextScenario(t *testing.T) {
	d := amqp.Delivery{
		Body:          []byte("hello"),
		DeliveryTag:   1,
		Exchange:      "",
		RoutingKey:    "q1",
		CorrelationId: "abc",
	}

	msg := Decode(d, message.TextPlain)

	text, ok := msg.Content.Text()
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	attrs := msg.Attributes.AsMap()
	env := attrs[message.KeyEnvelope].(map[string]interface{})
	assert.Equal(t, uint64(1), env[message.KeyDeliveryTag])
	assert.Equal(t, "", env[message.KeyExchange])
	assert.Equal(t, "q1", env[message.KeyRoutingKey])

	props := attrs[message.KeyProperties].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{message.KeyCorrelationID: "abc"}, props)
	assert.Equal(t, "abc", attrs[message.KeyCorrelationID])
}

func TestDecodeBinary(t *testing.T) {
	body := []byte{0xde, 0xad, 0xbe, 0xef}
	msg := Decode(amqp.Delivery{Body: body}, message.ApplicationOctetStream)

	got, ok := msg.Content.Bytes()
	require.True(t, ok)
	assert.Equal(t, body, got)
	assert.Equal(t, message.ApplicationOctetStream, msg.Content.MimeType())
}

func TestDecodeNilBody(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		msg := Decode(amqp.Delivery{}, message.TextPlain)
		text, ok := msg.Content.Text()
		require.True(t, ok)
		assert.Equal(t, "", text)
	})

	t.Run("binary", func(t *testing.T) {
		msg := Decode(amqp.Delivery{}, message.ApplicationOctetStream)
		b, ok := msg.Content.Bytes()
		require.True(t, ok)
		assert.NotNil(t, b)
		assert.Empty(t, b)
	})
}

func TestAttributesCopiesEveryPresentProperty(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	d := amqp.Delivery{
		Headers:         amqp.Table{"tenant": "acme", "retries": int32(2)},
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		DeliveryMode:    amqp.Persistent,
		Priority:        5,
		CorrelationId:   "corr",
		ReplyTo:         "replies",
		Expiration:      "60000",
		MessageId:       "m-1",
		Timestamp:       ts,
		Type:            "order.created",
		UserId:          "guest",
		AppId:           "shop",
		DeliveryTag:     42,
		Exchange:        "orders",
		RoutingKey:      "created",
	}

	attrs := Attributes(d)
	p := attrs.Properties

	require.NotNil(t, p.ContentType)
	assert.Equal(t, "application/json", *p.ContentType)
	assert.Equal(t, "gzip", *p.ContentEncoding)
	assert.Equal(t, uint8(2), *p.DeliveryMode)
	assert.Equal(t, uint8(5), *p.Priority)
	assert.Equal(t, "corr", *p.CorrelationID)
	assert.Equal(t, "replies", *p.ReplyTo)
	assert.Equal(t, "60000", *p.Expiration)
	assert.Equal(t, "m-1", *p.MessageID)
	assert.True(t, ts.Equal(*p.Timestamp))
	assert.Equal(t, "order.created", *p.Type)
	assert.Equal(t, "guest", *p.UserID)
	assert.Equal(t, "shop", *p.AppID)
	assert.Nil(t, p.ClusterID)
	assert.Equal(t, map[string]interface{}{"tenant": "acme", "retries": int32(2)}, p.Headers)

	assert.Equal(t, message.Envelope{DeliveryTag: 42, Exchange: "orders", RoutingKey: "created"}, attrs.Envelope)
	require.NotNil(t, attrs.CorrelationID)
	assert.Equal(t, "corr", *attrs.CorrelationID)

	assert.Len(t, p.AsMap(), 13)
}

func TestAttributesOmitAbsentProperties(t *testing.T) {
	attrs := Attributes(amqp.Delivery{DeliveryTag: 3})

	assert.Empty(t, attrs.Properties.AsMap())
	assert.Nil(t, attrs.CorrelationID)
	_, ok := attrs.AsMap()[message.KeyCorrelationID]
	assert.False(t, ok)
}

func TestTransportableHeaders(t *testing.T) {
	t.Run("drops values the table codec cannot carry", func(t *testing.T) {
		headers := amqp.Table{
			"keep-string": "v",
			"keep-int":    int64(1),
			"keep-bytes":  []byte("raw"),
			"keep-nested": amqp.Table{"inner": "x"},
			"drop-nil":    nil,
			"drop-struct": struct{}{},
			"drop-chan":   make(chan int),
		}

		got := transportableHeaders(headers)
		assert.Len(t, got, 4)
		assert.Contains(t, got, "keep-string")
		assert.Contains(t, got, "keep-int")
		assert.Contains(t, got, "keep-bytes")
		assert.Contains(t, got, "keep-nested")
	})

	t.Run("nil table stays absent", func(t *testing.T) {
		assert.Nil(t, transportableHeaders(nil))
	})

	t.Run("empty table stays present", func(t *testing.T) {
		got := transportableHeaders(amqp.Table{})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestStringHeaders(t *testing.T) {
	got := stringHeaders(amqp.Table{"traceparent": "00-abc-def-01", "count": int32(1)})
	assert.Equal(t, map[string]string{"traceparent": "00-abc-def-01"}, got)
	assert.Nil(t, stringHeaders(nil))
}
