package utils

import (
	"reflect"
	"strings"
)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// EscapePointerToken escapes a single reference token for use in a JSON
// pointer (RFC 6901): '~' becomes "~0" and '/' becomes "~1".
//
// Example:
//
//	EscapePointerToken("a/b") // "a~1b"
func EscapePointerToken(token string) string {
	return pointerEscaper.Replace(token)
}

// DeepCopy copies a decoded JSON value. Maps and slices are copied
// recursively; every other value is returned as is, which is safe for the
// immutable scalars produced by JSON decoding.
//
// Named map types with string keys (such as schema documents nested inside
// another document) and typed slices are normalised to map[string]any and
// []any, the shapes a JSON decoder would have produced.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	case string, bool, float64:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = DeepCopy(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = DeepCopy(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// DeepCopyMap is DeepCopy specialised to JSON objects. The result keeps the
// named type of m at the top level only.
func DeepCopyMap[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, item := range m {
		out[k] = DeepCopy(item)
	}
	return out
}

// Equal reports whether two decoded JSON values are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
