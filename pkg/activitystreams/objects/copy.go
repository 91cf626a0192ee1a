package objects

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DeepCopy copies a json compatible value recursively. Objects nested in the
// value are replaced by their exported json so that the copy never shares
// state with them.
func DeepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return map[string]any(nil)
		}
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[key] = DeepCopy(item)
		}
		return m
	case []any:
		if v == nil {
			return []any(nil)
		}
		s := make([]any, len(v))
		for i, item := range v {
			s[i] = DeepCopy(item)
		}
		return s
	case []string:
		if v == nil {
			return []string(nil)
		}
		return append([]string{}, v...)
	case []map[string]any:
		if v == nil {
			return []map[string]any(nil)
		}
		s := make([]map[string]any, len(v))
		for i, item := range v {
			s[i], _ = DeepCopy(item).(map[string]any)
		}
		return s
	case []*ASObj:
		s := make([]any, len(v))
		for i, item := range v {
			s[i] = DeepCopy(item)
		}
		return s
	case map[string]string:
		if v == nil {
			return map[string]string(nil)
		}
		m := make(map[string]string, len(v))
		for key, item := range v {
			m[key] = item
		}
		return m
	case *ASObj:
		if v == nil {
			return nil
		}
		return v.JSON()
	case ASObj:
		return v.JSON()
	default:
		return copyValue(reflect.ValueOf(value))
	}
}

// copyValue copies the slices, arrays, maps and pointers that DeepCopy has no
// case for into []any and map[string]any. Byte slices keep their type.
func copyValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
			reflect.Copy(b, rv)
			return b.Interface()
		}
		return copyElements(rv)
	case reflect.Array:
		return copyElements(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[mapKey(iter.Key())] = DeepCopy(iter.Value().Interface())
		}
		return m
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return DeepCopy(rv.Elem().Interface())
	case reflect.Struct:
		return viaJSON(rv.Interface())
	default:
		// strings, numbers and booleans are immutable
		return rv.Interface()
	}
}

func copyElements(rv reflect.Value) []any {
	s := make([]any, rv.Len())
	for i := range s {
		s[i] = DeepCopy(rv.Index(i).Interface())
	}
	return s
}

// mapKey formats a map key the way encoding/json does
func mapKey(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	if tm, ok := key.Interface().(interface{ MarshalText() ([]byte, error) }); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(key.Interface())
}

// viaJSON turns a struct into plain json values. Values that can not be
// encoded are kept as they are.
func viaJSON(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return value
	}

	return plain
}
