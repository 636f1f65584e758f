package serializer

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
)

const formatJSON = "json"

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// JSON is the structured, interoperable strategy. Use it for small results
// of cheap operations that other services may want to read.
type JSON struct{}

// Name returns "json"
func (JSON) Name() string {
	return formatJSON
}

// Serialize rejects values that are not composed of null, booleans, finite
// numbers, strings, sequences and string-keyed mappings before encoding.
func (JSON) Serialize(v any) ([]byte, error) {
	if err := checkJSONValue(reflect.ValueOf(v), make(map[visit]bool)); err != nil {
		return nil, newError(formatJSON, OpSerialize, v, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, newError(formatJSON, OpSerialize, v, err)
	}
	return data, nil
}

// Deserialize decodes UTF-8 JSON into target.
//
// JSON carries no Go types, so values decoded into empty-interface
// positions (an any field, a map[string]any result) take the natural Go
// type of the literal: int for integral numbers that fit, float64 for other
// numbers, map[string]any for objects and []any for arrays. A float64 with
// an integral value held in such a position therefore comes back as int.
func (JSON) Deserialize(data []byte, target any) error {
	if err := checkTarget(formatJSON, target); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return newError(formatJSON, OpDeserialize, target, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return newError(formatJSON, OpDeserialize, target, errors.New("trailing data after value"))
	}

	normalize(reflect.ValueOf(target), jsonNumber)
	return nil
}

func jsonNumber(x any) any {
	n, ok := x.(json.Number)
	if !ok {
		return x
	}
	if i, err := strconv.ParseInt(string(n), 10, 0); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return x
}

// checkJSONValue walks the value graph. path holds the references on the
// way down, so a value that contains itself is reported instead of followed.
func checkJSONValue(v reflect.Value, path map[visit]bool) error { //nolint:gocyclo // one case per kind
	if !v.IsValid() {
		return nil
	}

	t := v.Type()
	if t.Implements(jsonMarshalerType) {
		return nil
	}

	key, entered, ok := enter(v, path)
	if !ok {
		return fmt.Errorf("%w through %s", errCycle, t)
	}
	if entered {
		defer delete(path, key)
	}

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("unsupported float value %v", f)
		}
		return nil
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkJSONValue(v.Elem(), path)
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkJSONValue(v.Elem(), path)
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkJSONValue(v.Index(i), path); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String && !t.Key().Implements(textMarshalerType) {
			return fmt.Errorf("unsupported map key type %s", t.Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkJSONValue(iter.Value(), path); err != nil {
				return fmt.Errorf("key %v: %w", iter.Key(), err)
			}
		}
		return nil
	case reflect.Struct:
		return checkJSONStruct(v, path)
	default:
		return fmt.Errorf("unsupported type %s", t)
	}
}

func checkJSONStruct(v reflect.Value, path map[visit]bool) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() && !field.Anonymous {
			continue
		}
		if name, _, _ := strings.Cut(field.Tag.Get("json"), ","); name == "-" {
			continue
		}
		if err := checkJSONValue(v.Field(i), path); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

var _ Serializer = JSON{}
