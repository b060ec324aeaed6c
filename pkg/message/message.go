// Package message defines the in-memory message exchanged between the broker
// side of the connector and the host pipeline.
package message

// Message is one unit of work flowing through the pipeline.
type Message struct {
	Content    Content
	Attributes Attributes
}

// New returns a message with the given content and attributes.
func New(content Content, attrs Attributes) *Message {
	return &Message{Content: content, Attributes: attrs}
}

// Payload returns the content value.
func (m *Message) Payload() interface{} {
	if m == nil {
		return nil
	}
	return m.Content.Value()
}

// CorrelationID returns the top-level correlation id, or "" when absent.
func (m *Message) CorrelationID() string {
	if m == nil || m.Attributes.CorrelationID == nil {
		return ""
	}
	return *m.Attributes.CorrelationID
}
