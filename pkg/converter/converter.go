// Package converter turns pipeline payloads into the byte form written to the
// broker.
package converter

import (
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"google.golang.org/protobuf/proto"
)

// Converter converts an arbitrary payload to bytes.
type Converter interface {
	ToBytes(v interface{}) ([]byte, error)
}

// Func adapts a function to the Converter interface.
type Func func(v interface{}) ([]byte, error)

// ToBytes calls f(v).
func (f Func) ToBytes(v interface{}) ([]byte, error) {
	return f(v)
}

// Default is the converter used when none is configured.
var Default Converter = Func(ToBytes)

// ToBytes converts v using, in order: byte and string passthrough, protobuf
// wire encoding, encoding.TextMarshaler, json.Marshaler, io.Reader,
// fmt.Stringer, decimal formatting of numbers and bools, and finally JSON.
// A nil payload converts to an empty slice.
func ToBytes(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		if val == nil {
			return []byte{}, nil
		}
		return val, nil
	case string:
		return []byte(val), nil
	case *string:
		if val == nil {
			return []byte{}, nil
		}
		return []byte(*val), nil
	case proto.Message:
		b, err := proto.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("marshal protobuf payload: %w", err)
		}
		return b, nil
	case encoding.TextMarshaler:
		b, err := val.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal text payload: %w", err)
		}
		return b, nil
	case json.Marshaler:
		b, err := val.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal json payload: %w", err)
		}
		return b, nil
	case io.Reader:
		b, err := io.ReadAll(val)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return b, nil
	case fmt.Stringer:
		return []byte(val.String()), nil
	case bool:
		return strconv.AppendBool(nil, val), nil
	case int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(nil, val, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(val), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(val), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(val), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(val), 10), nil
	case uint64:
		return strconv.AppendUint(nil, val, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, val, 'g', -1, 64), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("convert %T payload to bytes: %w", v, err)
		}
		return b, nil
	}
}
