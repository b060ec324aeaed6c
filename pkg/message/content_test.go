package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContent(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		c := TextContent("hello", TextPlain)
		s, ok := c.Text()
		assert.True(t, ok)
		assert.Equal(t, "hello", s)
		assert.True(t, c.IsText())
		assert.Equal(t, "hello", c.Value())
		_, ok = c.Bytes()
		assert.False(t, ok)
	})

	t.Run("nil bytes become empty", func(t *testing.T) {
		c := BinaryContent(nil, ApplicationOctetStream)
		b, ok := c.Bytes()
		assert.True(t, ok)
		assert.NotNil(t, b)
		assert.Empty(t, b)
		assert.Equal(t, []byte{}, c.Value())
	})

	t.Run("object", func(t *testing.T) {
		v := map[string]int{"a": 1}
		c := ObjectContent(v, ApplicationJSON)
		assert.False(t, c.IsText())
		assert.False(t, c.IsBinary())
		assert.Equal(t, v, c.Value())
		assert.Equal(t, ApplicationJSON, c.MimeType())
	})
}

func TestMessageAccessors(t *testing.T) {
	var nilMsg *Message
	assert.Nil(t, nilMsg.Payload())
	assert.Equal(t, "", nilMsg.CorrelationID())

	id := "c-1"
	msg := New(TextContent("x", TextPlain), Attributes{CorrelationID: &id})
	assert.Equal(t, "x", msg.Payload())
	assert.Equal(t, "c-1", msg.CorrelationID())
}
