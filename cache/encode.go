package cache

import (
	"encoding"
	"encoding/json"
	"fmt"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
)

// encodeValue turns a caller value into something the redis protocol can
// carry. Scalars pass through, anything structured is JSON encoded.
func encodeValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil value: %w", errs.ErrInvalidParameter)
	case string, []byte, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case encoding.BinaryMarshaler:
		return v, nil
	case json.RawMessage:
		return []byte(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %T: %w", v, err)
		}
		return b, nil
	}
}

func encodePairs(kvp []any) ([]any, error) {
	out := make([]any, len(kvp))
	for i, v := range kvp {
		if i%2 == 0 {
			field, ok := v.(string)
			if !ok || field == "" {
				return nil, fmt.Errorf("field at position %d must be a non-empty string: %w", i, errs.ErrInvalidParameter)
			}
			out[i] = field
			continue
		}
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}
