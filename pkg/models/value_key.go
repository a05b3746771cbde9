package models

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"time"
)

// ValueKind classifies a scalar for overlap comparison.
// Values of different kinds never compare equal.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
	ValueKindTime   ValueKind = "time"
	ValueKindBytes  ValueKind = "bytes"
)

// ValueKey is the hashable form of a cell value.
// Two cells match when their keys are equal.
type ValueKey struct {
	Kind ValueKind
	Text string
}

// KeyOf returns the comparison key for a cell value.
// The second result is false for values that can never match: nil, NaN and
// composite values such as maps and slices.
//
// Numbers of any Go numeric type share one kind so that 1 (int64 from a CSV)
// and 1.0 (float64 from JSON) compare equal. Strings are never converted, so
// "1" and 1 do not match.
func KeyOf(v any) (ValueKey, bool) {
	switch val := v.(type) {
	case nil:
		return ValueKey{}, false
	case string:
		return ValueKey{Kind: ValueKindString, Text: val}, true
	case bool:
		return ValueKey{Kind: ValueKindBool, Text: strconv.FormatBool(val)}, true
	case int:
		return numberKey(int64(val)), true
	case int8:
		return numberKey(int64(val)), true
	case int16:
		return numberKey(int64(val)), true
	case int32:
		return numberKey(int64(val)), true
	case int64:
		return numberKey(val), true
	case uint:
		return uintKey(uint64(val)), true
	case uint8:
		return uintKey(uint64(val)), true
	case uint16:
		return uintKey(uint64(val)), true
	case uint32:
		return uintKey(uint64(val)), true
	case uint64:
		return uintKey(val), true
	case float32:
		return floatKey(float64(val))
	case float64:
		return floatKey(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return numberKey(i), true
		}
		if b, ok := new(big.Int).SetString(val.String(), 10); ok {
			return ValueKey{Kind: ValueKindNumber, Text: b.String()}, true
		}
		f, err := val.Float64()
		if err != nil {
			return ValueKey{}, false
		}
		return floatKey(f)
	case time.Time:
		return ValueKey{Kind: ValueKindTime, Text: val.UTC().Format(time.RFC3339Nano)}, true
	case []byte:
		return ValueKey{Kind: ValueKindBytes, Text: string(val)}, true
	default:
		return ValueKey{}, false
	}
}

func numberKey(i int64) ValueKey {
	return ValueKey{Kind: ValueKindNumber, Text: strconv.FormatInt(i, 10)}
}

func uintKey(u uint64) ValueKey {
	return ValueKey{Kind: ValueKindNumber, Text: strconv.FormatUint(u, 10)}
}

func floatKey(f float64) (ValueKey, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ValueKey{}, false
	}
	// Integral floats print as plain digits, the same text integer types produce.
	if f == math.Trunc(f) {
		if f == 0 {
			f = 0 // drop the sign of -0
		}
		return ValueKey{Kind: ValueKindNumber, Text: strconv.FormatFloat(f, 'f', -1, 64)}, true
	}
	return ValueKey{Kind: ValueKindNumber, Text: strconv.FormatFloat(f, 'g', -1, 64)}, true
}
