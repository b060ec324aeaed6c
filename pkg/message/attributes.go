package message

import (
	"encoding/json"
	"time"
)

// Attribute keys of the map view returned by Attributes.AsMap.
const (
	KeyEnvelope      = "envelope"
	KeyProperties    = "properties"
	KeyCorrelationID = "correlationId"

	KeyDeliveryTag = "deliveryTag"
	KeyExchange    = "exchange"
	KeyRoutingKey  = "routingKey"

	KeyContentType     = "contentType"
	KeyContentEncoding = "contentEncoding"
	KeyHeaders         = "headers"
	KeyDeliveryMode    = "deliveryMode"
	KeyPriority        = "priority"
	KeyReplyTo         = "replyTo"
	KeyExpiration      = "expiration"
	KeyMessageID       = "messageId"
	KeyTimestamp       = "timestamp"
	KeyType            = "type"
	KeyUserID          = "userId"
	KeyAppID           = "appId"
	KeyClusterID       = "clusterId"
)

// Envelope is the routing metadata of a delivery.
type Envelope struct {
	DeliveryTag uint64
	Exchange    string
	RoutingKey  string
}

// Properties holds the basic properties of a delivery. A nil field means the
// broker did not send it.
type Properties struct {
	ContentType     *string
	ContentEncoding *string
	Headers         map[string]interface{}
	DeliveryMode    *uint8
	Priority        *uint8
	CorrelationID   *string
	ReplyTo         *string
	Expiration      *string
	MessageID       *string
	Timestamp       *time.Time
	Type            *string
	UserID          *string
	AppID           *string
	ClusterID       *string
}

// Attributes is the metadata handed to the pipeline with every inbound
// message. CorrelationID mirrors Properties.CorrelationID.
type Attributes struct {
	Envelope      Envelope
	Properties    Properties
	CorrelationID *string
}

// NewAttributes builds Attributes and derives the top-level correlation id.
func NewAttributes(env Envelope, props Properties) Attributes {
	attrs := Attributes{Envelope: env, Properties: props}
	if props.CorrelationID != nil {
		id := *props.CorrelationID
		attrs.CorrelationID = &id
	}
	return attrs
}

// AsMap renders the attributes in their nested map form. Absent properties
// have no key at all, and correlationId is present only when the delivery
// carried one.
func (a Attributes) AsMap() map[string]interface{} {
	out := map[string]interface{}{
		KeyEnvelope:   a.Envelope.AsMap(),
		KeyProperties: a.Properties.AsMap(),
	}
	if a.CorrelationID != nil {
		out[KeyCorrelationID] = *a.CorrelationID
	}
	return out
}

// MarshalJSON encodes the map form.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.AsMap())
}

// AsMap renders the envelope. All three fields are always present.
func (e Envelope) AsMap() map[string]interface{} {
	return map[string]interface{}{
		KeyDeliveryTag: e.DeliveryTag,
		KeyExchange:    e.Exchange,
		KeyRoutingKey:  e.RoutingKey,
	}
}

// AsMap renders the properties, skipping nil fields.
func (p Properties) AsMap() map[string]interface{} {
	out := make(map[string]interface{}, 14)
	putString(out, KeyContentType, p.ContentType)
	putString(out, KeyContentEncoding, p.ContentEncoding)
	if p.Headers != nil {
		headers := make(map[string]interface{}, len(p.Headers))
		for k, v := range p.Headers {
			headers[k] = v
		}
		out[KeyHeaders] = headers
	}
	putUint8(out, KeyDeliveryMode, p.DeliveryMode)
	putUint8(out, KeyPriority, p.Priority)
	putString(out, KeyCorrelationID, p.CorrelationID)
	putString(out, KeyReplyTo, p.ReplyTo)
	putString(out, KeyExpiration, p.Expiration)
	putString(out, KeyMessageID, p.MessageID)
	if p.Timestamp != nil {
		out[KeyTimestamp] = *p.Timestamp
	}
	putString(out, KeyType, p.Type)
	putString(out, KeyUserID, p.UserID)
	putString(out, KeyAppID, p.AppID)
	putString(out, KeyClusterID, p.ClusterID)
	return out
}

func putString(m map[string]interface{}, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func putUint8(m map[string]interface{}, key string, v *uint8) {
	if v != nil {
		m[key] = *v
	}
}
