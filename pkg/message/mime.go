package message

import (
	"mime"
	"strings"
)

// MimeType is a media type such as "text/plain; charset=utf-8".
type MimeType string

// Common media types.
const (
	TextPlain              MimeType = "text/plain"
	TextHTML               MimeType = "text/html"
	ApplicationJSON        MimeType = "application/json"
	ApplicationXML         MimeType = "application/xml"
	ApplicationOctetStream MimeType = "application/octet-stream"
	ApplicationProtobuf    MimeType = "application/x-protobuf"
)

// DefaultMimeType is used when no content type is configured.
const DefaultMimeType = ApplicationOctetStream

var textualApplicationTypes = map[string]struct{}{
	"application/json":                  {},
	"application/xml":                   {},
	"application/javascript":            {},
	"application/ecmascript":            {},
	"application/x-www-form-urlencoded": {},
	"application/yaml":                  {},
	"application/x-yaml":                {},
	"application/csv":                   {},
	"application/sql":                   {},
	"application/graphql":               {},
	"application/x-sh":                  {},
}

// ParseMimeType normalizes s. Blank input yields DefaultMimeType; input that
// is not a valid media type is kept lower-cased and trimmed.
func ParseMimeType(s string) MimeType {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMimeType
	}
	mediaType, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MimeType(strings.ToLower(s))
	}
	return MimeType(mime.FormatMediaType(mediaType, params))
}

// MediaType returns the type/subtype part without parameters.
func (m MimeType) MediaType() string {
	s := string(m)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// IsText reports whether payloads of this type are decoded as strings.
// Every text/* type qualifies, as do JSON, XML and a few other textual
// application types including +json and +xml suffixes.
func (m MimeType) IsText() bool {
	mt := m.MediaType()
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	if strings.HasSuffix(mt, "+json") || strings.HasSuffix(mt, "+xml") {
		return true
	}
	_, ok := textualApplicationTypes[mt]
	return ok
}

func (m MimeType) String() string {
	return string(m)
}
