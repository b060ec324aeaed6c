package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewAttributesCorrelationID(t *testing.T) {
	t.Run("copied from properties", func(t *testing.T) {
		attrs := NewAttributes(Envelope{DeliveryTag: 1}, Properties{CorrelationID: strPtr("abc")})
		require.NotNil(t, attrs.CorrelationID)
		assert.Equal(t, "abc", *attrs.CorrelationID)

		m := attrs.AsMap()
		assert.Equal(t, "abc", m[KeyCorrelationID])
		assert.Equal(t, "abc", m[KeyProperties].(map[string]interface{})[KeyCorrelationID])
	})

	t.Run("absent when properties lack it", func(t *testing.T) {
		attrs := NewAttributes(Envelope{DeliveryTag: 1}, Properties{})
		assert.Nil(t, attrs.CorrelationID)

		_, ok := attrs.AsMap()[KeyCorrelationID]
		assert.False(t, ok)
	})
}

func TestPropertiesAsMapOmitsAbsentFields(t *testing.T) {
	mode := uint8(2)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	props := Properties{
		ContentType:  strPtr("text/plain"),
		DeliveryMode: &mode,
		Timestamp:    &ts,
		Headers:      map[string]interface{}{"tenant": "acme"},
	}

	m := props.AsMap()
	assert.Len(t, m, 4)
	assert.Equal(t, "text/plain", m[KeyContentType])
	assert.Equal(t, uint8(2), m[KeyDeliveryMode])
	assert.Equal(t, ts, m[KeyTimestamp])
	assert.Equal(t, map[string]interface{}{"tenant": "acme"}, m[KeyHeaders])

	for _, absent := range []string{KeyContentEncoding, KeyPriority, KeyCorrelationID, KeyReplyTo, KeyExpiration,
		KeyMessageID, KeyType, KeyUserID, KeyAppID, KeyClusterID} {
		_, ok := m[absent]
		assert.False(t, ok, absent)
	}
}

func TestEnvelopeAsMap(t *testing.T) {
	m := Envelope{DeliveryTag: 9, Exchange: "", RoutingKey: "q1"}.AsMap()
	assert.Equal(t, map[string]interface{}{
		KeyDeliveryTag: uint64(9),
		KeyExchange:    "",
		KeyRoutingKey:  "q1",
	}, m)
}

func TestAttributesMarshalJSON(t *testing.T) {
	attrs := NewAttributes(
		Envelope{DeliveryTag: 1, Exchange: "", RoutingKey: "q1"},
		Properties{CorrelationID: strPtr("abc")},
	)

	raw, err := json.Marshal(attrs)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"envelope": {"deliveryTag": 1, "exchange": "", "routingKey": "q1"},
		"properties": {"correlationId": "abc"},
		"correlationId": "abc"
	}`, string(raw))
}
