package localrt

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// SerializeLeafValue converts a resolved leaf into a JSON-safe value.
// Pointers are dereferenced. The five specified scalars are coerced per the
// GraphQL result coercion rules; enums and unknown scalars pass through
// unless a serializer was registered with WithScalar.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	value = deref(value)
	if value == nil {
		return nil, nil
	}
	if fn, ok := r.scalars[typeName]; ok {
		return fn(value)
	}
	switch typeName {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String":
		return serializeString(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int, int32, int64, uint, uint32, uint64:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %v", value)
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return value, nil
}

func deref(value any) any {
	rv := reflect.ValueOf(value)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func serializeInt(value any) (any, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("Int cannot represent non-integer value: %v", value)
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
	}
	return int(n), nil
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int32, int64, float64:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", value)
}
