package message

// Content is a message payload together with its media type. It holds one of
// a string, a byte slice or an arbitrary value handed over by the pipeline.
type Content struct {
	mimeType MimeType
	kind     contentKind
	text     string
	data     []byte
	object   interface{}
}

type contentKind int

const (
	kindBinary contentKind = iota
	kindText
	kindObject
)

// TextContent wraps a string payload.
func TextContent(s string, mimeType MimeType) Content {
	return Content{mimeType: mimeType, kind: kindText, text: s}
}

// BinaryContent wraps a byte payload. A nil slice becomes an empty payload.
func BinaryContent(b []byte, mimeType MimeType) Content {
	if b == nil {
		b = []byte{}
	}
	return Content{mimeType: mimeType, kind: kindBinary, data: b}
}

// ObjectContent wraps an arbitrary value, typically produced by a pipeline
// step and converted to bytes only when published.
func ObjectContent(v interface{}, mimeType MimeType) Content {
	return Content{mimeType: mimeType, kind: kindObject, object: v}
}

// MimeType returns the payload media type.
func (c Content) MimeType() MimeType {
	return c.mimeType
}

// IsText reports whether the payload is a string.
func (c Content) IsText() bool {
	return c.kind == kindText
}

// IsBinary reports whether the payload is a byte slice.
func (c Content) IsBinary() bool {
	return c.kind == kindBinary
}

// Text returns the string payload. ok is false for non-text content.
func (c Content) Text() (s string, ok bool) {
	if c.kind != kindText {
		return "", false
	}
	return c.text, true
}

// Bytes returns the byte payload. ok is false for non-binary content.
func (c Content) Bytes() (b []byte, ok bool) {
	if c.kind != kindBinary {
		return nil, false
	}
	return c.data, true
}

// Value returns the payload as string, []byte or the wrapped object.
func (c Content) Value() interface{} {
	switch c.kind {
	case kindText:
		return c.text
	case kindObject:
		return c.object
	default:
		if c.data == nil {
			return []byte{}
		}
		return c.data
	}
}
