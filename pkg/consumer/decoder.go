package consumer

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
)

// Decode converts a raw delivery into a pipeline message. Textual mime types
// yield a string payload, any other type the raw bytes. A nil body decodes
// to an empty payload. Decode never fails.
func Decode(d amqp.Delivery, mimeType message.MimeType) *message.Message {
	var content message.Content
	if mimeType.IsText() {
		content = message.TextContent(string(d.Body), mimeType)
	} else {
		content = message.BinaryContent(d.Body, mimeType)
	}
	return message.New(content, Attributes(d))
}

// Attributes extracts envelope and properties from d. Zero values are what
// amqp091 reports for properties the publisher did not set, so they are
// treated as absent. The cluster id is never exposed by amqp091 and is
// therefore always absent.
func Attributes(d amqp.Delivery) message.Attributes {
	env := message.Envelope{
		DeliveryTag: d.DeliveryTag,
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
	}

	props := message.Properties{
		ContentType:     optString(d.ContentType),
		ContentEncoding: optString(d.ContentEncoding),
		Headers:         transportableHeaders(d.Headers),
		DeliveryMode:    optUint8(d.DeliveryMode),
		Priority:        optUint8(d.Priority),
		CorrelationID:   optString(d.CorrelationId),
		ReplyTo:         optString(d.ReplyTo),
		Expiration:      optString(d.Expiration),
		MessageID:       optString(d.MessageId),
		Type:            optString(d.Type),
		UserID:          optString(d.UserId),
		AppID:           optString(d.AppId),
	}
	if !d.Timestamp.IsZero() {
		ts := d.Timestamp
		props.Timestamp = &ts
	}

	return message.NewAttributes(env, props)
}

// transportableHeaders keeps the header entries whose values the AMQP table
// codec can carry. Nil values are dropped. A nil table stays nil so the
// headers key is omitted.
func transportableHeaders(headers amqp.Table) map[string]interface{} {
	if headers == nil {
		return nil
	}
	out := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		if v == nil {
			continue
		}
		if err := (amqp.Table{k: v}).Validate(); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// stringHeaders returns the string valued headers, used as a trace carrier.
func stringHeaders(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optUint8(v uint8) *uint8 {
	if v == 0 {
		return nil
	}
	return &v
}
